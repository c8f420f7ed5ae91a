package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/frahmantamala/identity-management/internal/credential"
	"github.com/frahmantamala/identity-management/internal/role"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the built-in roles and a bootstrap admin",
	Long:  `Seed the role vocabulary with the built-in set and create the initial superadmin account for development and first deployment.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"user_roles", "audit_logs", "users", "roles"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		for _, def := range role.BuiltinRoles {
			var exists int
			row := db.Raw("SELECT 1 FROM roles WHERE name = ?", def.Name).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec(
				"INSERT INTO roles (name, protected, created_at, updated_at) VALUES (?, ?, now(), now())",
				def.Name, def.Protected,
			).Error; err != nil {
				log.Fatalf("failed to insert role %s: %v", def.Name, err)
			}
			fmt.Println("Seeded role:", def.Name)
		}

		adminEmail := "root@local.test"
		var exists int
		row := db.Raw("SELECT 1 FROM users WHERE email = ?", adminEmail).Row()
		if err := row.Scan(&exists); err == nil {
			fmt.Println("bootstrap admin already exists:", adminEmail)
			return
		}

		tmpPassword, err := credential.GenerateTempPassword()
		if err != nil {
			log.Fatalf("failed to generate bootstrap password: %v", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(tmpPassword), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash bootstrap password: %v", err)
		}

		now := time.Now()
		expires := now.Add(cfg.Security.PasswordMaxAge)
		if err := db.Exec(`
			INSERT INTO users (
				username, email, employee_id, mobile, name,
				password_hash, password_set_at, password_expires_at,
				is_active, is_email_verified, is_admin_verified,
				requires_password_change, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, true, true, true, true, now(), now())`,
			"root", adminEmail, "EMP-0000", "+10000000000", "Bootstrap Admin",
			string(hash), now, expires,
		).Error; err != nil {
			log.Fatalf("failed to insert bootstrap admin: %v", err)
		}

		var adminID int64
		if err := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row().Scan(&adminID); err != nil {
			log.Fatalf("failed to lookup bootstrap admin id: %v", err)
		}
		var roleID int64
		if err := db.Raw("SELECT id FROM roles WHERE name = ?", role.ProtectedRole).Row().Scan(&roleID); err != nil {
			log.Fatalf("failed to lookup %s role id: %v", role.ProtectedRole, err)
		}
		if err := db.Exec(
			"INSERT INTO user_roles (user_id, role_id, granted_by, created_at) VALUES (?, ?, NULL, now())",
			adminID, roleID,
		).Error; err != nil {
			log.Fatalf("failed to grant %s to bootstrap admin: %v", role.ProtectedRole, err)
		}

		fmt.Println("Seeded bootstrap admin:", adminEmail)
		fmt.Println("Temporary password (change on first login):", tmpPassword)
	},
}
