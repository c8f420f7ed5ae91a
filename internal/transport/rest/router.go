package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/identity-management/internal/auth"
	"github.com/frahmantamala/identity-management/internal/passwordreset"
	"github.com/frahmantamala/identity-management/internal/role"
	"github.com/frahmantamala/identity-management/internal/transport/middleware"
	"github.com/frahmantamala/identity-management/internal/transport/swagger"
	"github.com/frahmantamala/identity-management/internal/user"
	"github.com/frahmantamala/identity-management/internal/userrole"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	authHandler *auth.Handler,
	resetHandler *passwordreset.Handler,
	userHandler *user.Handler,
	roleHandler *role.Handler,
	userRoleHandler *userrole.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.UserContext)
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/login/otp", authHandler.LoginOTP)
				sr.Post("/otp", authHandler.RequestOTP)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/logout", authHandler.Logout)

				if resetHandler != nil {
					sr.Post("/password/reset-request", resetHandler.RequestReset)
					sr.Post("/password/reset", resetHandler.ResetPassword)
				}
			})
		}

		if authHandler != nil {
			// Protected routes that require authentication
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)

				// Current user
				pr.Get("/users/me", authHandler.GetCurrentUser)
				if userHandler != nil {
					pr.Post("/users/me/password", userHandler.ChangePassword)
				}

				// The vocabulary is readable by any authenticated principal
				if roleHandler != nil {
					pr.Get("/roles", roleHandler.ListRoles)
				}

				// Administrative routes
				pr.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireAdminTier())

					if roleHandler != nil {
						ar.Post("/roles", roleHandler.CreateRole)
						ar.Delete("/roles/{name}", roleHandler.DeleteRole)
					}

					if userHandler != nil {
						ar.Route("/users", func(ur chi.Router) {
							ur.Post("/", userHandler.CreateUser)
							ur.Get("/", userHandler.ListUsers)
							ur.Get("/{id}", userHandler.GetUser)
							ur.Post("/{id}/unlock", userHandler.UnlockUser)

							if userRoleHandler != nil {
								ur.Get("/{id}/roles", userRoleHandler.GetUserRoles)
								ur.Post("/{id}/roles", userRoleHandler.AssignRole)
								ur.Put("/{id}/roles", userRoleHandler.SetRoles)
								ur.Delete("/{id}/roles/{name}", userRoleHandler.RevokeRole)
							}
						})
					}
				})
			})
		}
	})
}
