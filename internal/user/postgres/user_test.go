package postgres_test

import (
	"context"
	"testing"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/user"
	userPostgres "github.com/frahmantamala/identity-management/internal/user/postgres"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUserRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Repository Suite")
}

var _ = Describe("User Repository", func() {
	var (
		db   *gorm.DB
		repo user.Repository
		ctx  context.Context
	)

	newUser := func(suffix string) *userDatamodel.User {
		return &userDatamodel.User{
			Username:     "user-" + suffix,
			Email:        suffix + "@example.com",
			EmployeeID:   "EMP-" + suffix,
			Mobile:       "+1555000" + suffix,
			Name:         "User " + suffix,
			PasswordHash: "$2a$04$notarealhashnotarealhashnotarealha",
			IsActive:     true,
		}
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&userDatamodel.User{})
		Expect(err).NotTo(HaveOccurred())

		repo = userPostgres.NewRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("Create", func() {
		It("should persist the aggregate and assign an id", func() {
			u := newUser("0001")

			Expect(repo.Create(ctx, u)).To(Succeed())
			Expect(u.ID).NotTo(BeZero())

			stored, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Username).To(Equal("user-0001"))
		})

		It("should surface identifier collisions as the domain conflict", func() {
			Expect(repo.Create(ctx, newUser("0001"))).To(Succeed())

			dup := newUser("0002")
			dup.Email = "0001@example.com"

			err := repo.Create(ctx, dup)
			Expect(err).To(Equal(errors.ErrDuplicateUser))
		})
	})

	Describe("GetByID", func() {
		It("should answer unknown ids with the domain error", func() {
			_, err := repo.GetByID(ctx, 999)
			Expect(err).To(Equal(errors.ErrUserNotFound))
		})
	})

	Describe("List", func() {
		It("should page ordered by id", func() {
			for _, s := range []string{"0001", "0002", "0003"} {
				Expect(repo.Create(ctx, newUser(s))).To(Succeed())
			}

			page, err := repo.List(ctx, 2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(2))
			Expect(page[0].Username).To(Equal("user-0001"))

			rest, err := repo.List(ctx, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(HaveLen(1))
			Expect(rest[0].Username).To(Equal("user-0003"))
		})
	})

	Describe("UpdateCredential", func() {
		It("should persist the password fields and the forced-change flag together", func() {
			u := newUser("0001")
			Expect(repo.Create(ctx, u)).To(Succeed())

			setAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			expiresAt := setAt.Add(90 * 24 * time.Hour)
			u.PasswordHash = "$2a$04$anotherhashanotherhashanotherhashX"
			u.PasswordSetAt = &setAt
			u.PasswordExpiresAt = &expiresAt
			u.RequiresPasswordChange = false

			Expect(repo.UpdateCredential(ctx, u)).To(Succeed())

			stored, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PasswordHash).To(Equal(u.PasswordHash))
			Expect(stored.PasswordSetAt).NotTo(BeNil())
			Expect(stored.RequiresPasswordChange).To(BeFalse())
		})
	})

	Describe("ApplyUnlock", func() {
		It("should clear the lock state and store the fresh credential in one write", func() {
			u := newUser("0001")
			Expect(repo.Create(ctx, u)).To(Succeed())

			locked := time.Now().Add(time.Hour)
			Expect(db.Model(u).Updates(map[string]interface{}{
				"locked_until":       locked,
				"failed_login_count": 5,
				"otp_resend_count":   2,
			}).Error).To(Succeed())

			u.PasswordHash = "$2a$04$temporaryhashtemporaryhashtemporar"
			Expect(repo.ApplyUnlock(ctx, u)).To(Succeed())

			stored, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.LockedUntil).To(BeNil())
			Expect(stored.FailedLoginCount).To(BeZero())
			Expect(stored.OTPResendCount).To(BeZero())
			Expect(stored.RequiresPasswordChange).To(BeTrue())
			Expect(stored.PasswordHash).To(Equal(u.PasswordHash))
		})
	})
})
