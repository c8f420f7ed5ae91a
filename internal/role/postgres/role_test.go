package postgres_test

import (
	"context"
	"testing"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/role"
	rolePostgres "github.com/frahmantamala/identity-management/internal/role/postgres"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRoleRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Role Repository Suite")
}

var _ = Describe("Role Repository", func() {
	var (
		db   *gorm.DB
		repo role.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&userDatamodel.Role{}, &userDatamodel.UserRole{})
		Expect(err).NotTo(HaveOccurred())

		repo = rolePostgres.NewRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("Insert and GetAll", func() {
		It("should add roles and list them ordered by name", func() {
			_, err := repo.Insert(ctx, "staff", false)
			Expect(err).NotTo(HaveOccurred())
			_, err = repo.Insert(ctx, "admin", false)
			Expect(err).NotTo(HaveOccurred())
			def, err := repo.Insert(ctx, "superadmin", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(def.ID).NotTo(BeZero())
			Expect(def.Protected).To(BeTrue())

			defs, err := repo.GetAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, len(defs))
			for i, d := range defs {
				names[i] = d.Name
			}
			Expect(names).To(Equal([]string{"admin", "staff", "superadmin"}))
		})

		It("should introspect the domain values in the same order", func() {
			_, err := repo.Insert(ctx, "member", false)
			Expect(err).NotTo(HaveOccurred())
			_, err = repo.Insert(ctx, "admin", false)
			Expect(err).NotTo(HaveOccurred())

			names, err := repo.ListDomainValues(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"admin", "member"}))
		})

		It("should refuse a duplicate identifier at the storage layer", func() {
			_, err := repo.Insert(ctx, "staff", false)
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.Insert(ctx, "staff", false)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Remove", func() {
		It("should delete an unreferenced role", func() {
			_, err := repo.Insert(ctx, "auditor", false)
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.Remove(ctx, "auditor")).To(Succeed())

			names, err := repo.ListDomainValues(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(BeEmpty())
		})

		It("should answer unknown roles with the domain error", func() {
			err := repo.Remove(ctx, "ghost")
			Expect(err).To(Equal(errors.ErrUnknownRole))
		})

		It("should keep a role that assignments still reference", func() {
			def, err := repo.Insert(ctx, "staff", false)
			Expect(err).NotTo(HaveOccurred())

			assignment := userDatamodel.UserRole{UserID: 7, RoleID: def.ID}
			Expect(db.Table("user_roles").Create(&assignment).Error).To(Succeed())

			err = repo.Remove(ctx, "staff")
			Expect(err).To(Equal(errors.ErrRoleInUse))

			names, listErr := repo.ListDomainValues(ctx)
			Expect(listErr).NotTo(HaveOccurred())
			Expect(names).To(ContainElement("staff"))
		})
	})

	Describe("CountAssignments", func() {
		It("should count references by role name", func() {
			def, err := repo.Insert(ctx, "staff", false)
			Expect(err).NotTo(HaveOccurred())

			for _, userID := range []int64{1, 2, 3} {
				assignment := userDatamodel.UserRole{UserID: userID, RoleID: def.ID}
				Expect(db.Table("user_roles").Create(&assignment).Error).To(Succeed())
			}

			count, err := repo.CountAssignments(ctx, "staff")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(3)))

			count, err = repo.CountAssignments(ctx, "ghost")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})
