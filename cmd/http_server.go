package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/identity-management/internal"
	"github.com/frahmantamala/identity-management/internal/audit"
	auditPostgres "github.com/frahmantamala/identity-management/internal/audit/postgres"
	"github.com/frahmantamala/identity-management/internal/auth"
	authPostgres "github.com/frahmantamala/identity-management/internal/auth/postgres"
	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/frahmantamala/identity-management/internal/credential"
	"github.com/frahmantamala/identity-management/internal/lockout"
	"github.com/frahmantamala/identity-management/internal/notification"
	"github.com/frahmantamala/identity-management/internal/passwordreset"
	resetPostgres "github.com/frahmantamala/identity-management/internal/passwordreset/postgres"
	"github.com/frahmantamala/identity-management/internal/role"
	rolePostgres "github.com/frahmantamala/identity-management/internal/role/postgres"
	"github.com/frahmantamala/identity-management/internal/transport/middleware"
	"github.com/frahmantamala/identity-management/internal/transport/rest"
	"github.com/frahmantamala/identity-management/internal/user"
	userPostgres "github.com/frahmantamala/identity-management/internal/user/postgres"
	"github.com/frahmantamala/identity-management/internal/userrole"
	userrolePostgres "github.com/frahmantamala/identity-management/internal/userrole/postgres"
	"github.com/frahmantamala/identity-management/pkg/logger"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	GormDB   *gorm.DB
	Router   *chi.Mux
	Logger   *slog.Logger
	EventBus *events.EventBus
	Notifier notification.Sender

	AuthHandler     *auth.Handler
	ResetHandler    *passwordreset.Handler
	UserHandler     *user.Handler
	RoleHandler     *role.Handler
	UserRoleHandler *userrole.Handler

	notificationClient *notification.Client
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if deps.notificationClient != nil {
			deps.notificationClient.Shutdown()
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	deps.Router.Use(middleware.LoggingMiddleware(deps.Logger))
	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.AuthHandler,
		deps.ResetHandler,
		deps.UserHandler,
		deps.RoleHandler,
		deps.UserRoleHandler,
		deps.Logger,
	)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.LoggerWrapper()

	if err := validateOpenAPISpec("api/openapi.yml"); err != nil {
		// the document drives docs and client generation, not request handling
		log.Warn("openapi spec validation failed", "error", err)
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	// ambient infrastructure
	eventBus := events.NewEventBus(log)
	audit.RegisterSink(eventBus, auditPostgres.NewAuditSink(gormDB), log)
	recorder := audit.NewRecorder(eventBus, log)

	var notifier notification.Sender
	var notificationClient *notification.Client
	if config.Notification.GatewayURL != "" {
		notificationClient = notification.NewClient(notification.Config{
			GatewayURL:  config.Notification.GatewayURL,
			APIKey:      config.Notification.APIKey,
			SendTimeout: config.Notification.SendTimeout,
			MaxWorkers:  config.Notification.MaxWorkers,
			QueueSize:   config.Notification.QueueSize,
		}, log)
		notifier = notificationClient
	} else {
		notifier = &notification.LogSender{Logger: log}
	}

	// security core
	creds := credential.NewStore(config.Security.BCryptCost, config.Security.PasswordMaxAge)
	policy := lockout.NewPolicy(config.Security.MaxFailedLogins, config.Security.MaxOTPResends, config.Security.LockoutDuration)
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)

	roleService := role.NewService(
		rolePostgres.NewRepository(gormDB),
		role.NewFileMetadataStore(config.Security.RoleMetadataPath),
		recorder,
		log,
	)
	userRoleService := userrole.NewService(
		userrolePostgres.NewRepository(gormDB),
		roleService,
		recorder,
		log,
	)
	authService := auth.NewService(
		authPostgres.NewRepository(gormDB, policy),
		creds,
		tokenGen,
		notifier,
		recorder,
		log,
		config.Security.OTPTTL,
	)
	resetService := passwordreset.NewService(
		resetPostgres.NewRepository(gormDB),
		creds,
		notifier,
		recorder,
		log,
		config.Security.ResetTokenTTL,
	)
	userService := user.NewService(
		userPostgres.NewRepository(gormDB),
		creds,
		policy,
		userRoleService,
		notifier,
		recorder,
		log,
	)

	return &Dependencies{
		Config:   config,
		DB:       db,
		GormDB:   gormDB,
		Router:   chi.NewRouter(),
		Logger:   log,
		EventBus: eventBus,
		Notifier: notifier,

		AuthHandler:     auth.NewHandler(authService, log),
		ResetHandler:    passwordreset.NewHandler(resetService, log),
		UserHandler:     user.NewHandler(userService, log),
		RoleHandler:     role.NewHandler(roleService, log),
		UserRoleHandler: userrole.NewHandler(userRoleService, log),

		notificationClient: notificationClient,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// validateOpenAPISpec loads and validates the published contract at startup
// so a malformed spec is caught before anyone fetches it.
func validateOpenAPISpec(path string) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return fmt.Errorf("openapi spec is invalid: %w", err)
	}
	return nil
}
