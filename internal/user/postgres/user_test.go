package postgres

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	userDatamodel "github.com/frahmantamala/payment-portal/internal/core/datamodel/user"
	"github.com/frahmantamala/payment-portal/internal/user"
)

func TestUserRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "UserRepository Suite")
}

var _ = Describe("UserRepository", func() {
	var (
		db   *gorm.DB
		repo *UserRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&userDatamodel.User{})).To(Succeed())

		repo = NewUserRepository(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	newUser := func(email string, role user.Role) *user.User {
		return &user.User{Email: email, FullName: "Test " + string(role), Role: role, IsActive: true}
	}

	Describe("Create and GetByEmail", func() {
		It("assigns an id and returns the stored hash", func() {
			u := newUser("alice@co.com", user.RoleEmployee)
			Expect(repo.Create(ctx, u, "hash-1")).To(Succeed())
			Expect(u.ID).NotTo(BeEmpty())

			found, hash, err := repo.GetByEmail(ctx, "ALICE@co.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(hash).To(Equal("hash-1"))
			Expect(found.ID).To(Equal(u.ID))
			Expect(found.Role).To(Equal(user.RoleEmployee))
		})

		It("rejects a duplicate email", func() {
			Expect(repo.Create(ctx, newUser("dup@co.com", user.RoleEmployee), "h")).To(Succeed())
			Expect(repo.Create(ctx, newUser("dup@co.com", user.RoleManager), "h")).NotTo(Succeed())
		})

		It("returns ErrNotFound for an unknown email", func() {
			_, _, err := repo.GetByEmail(ctx, "nobody@co.com")
			Expect(err).To(MatchError(user.ErrNotFound))
		})
	})

	Describe("Update", func() {
		It("changes role and manager without touching the hash", func() {
			manager := newUser("bob@co.com", user.RoleManager)
			Expect(repo.Create(ctx, manager, "mh")).To(Succeed())
			u := newUser("carol@co.com", user.RoleEmployee)
			Expect(repo.Create(ctx, u, "ch")).To(Succeed())

			u.Role = user.RoleHR
			u.ManagerID = manager.ID
			Expect(repo.Update(ctx, u)).To(Succeed())

			found, hash, err := repo.GetByEmail(ctx, "carol@co.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Role).To(Equal(user.RoleHR))
			Expect(found.ManagerID).To(Equal(manager.ID))
			Expect(hash).To(Equal("ch"))
		})

		It("returns ErrNotFound for a missing row", func() {
			Expect(repo.Update(ctx, &user.User{ID: "missing", Role: user.RoleEmployee})).To(MatchError(user.ErrNotFound))
		})
	})

	Describe("UpdatePassword and List", func() {
		It("replaces the hash and lists users", func() {
			u := newUser("dave@co.com", user.RoleAdmin)
			Expect(repo.Create(ctx, u, "old")).To(Succeed())
			Expect(repo.UpdatePassword(ctx, u.ID, "new")).To(Succeed())

			_, hash, err := repo.GetByEmail(ctx, "dave@co.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(hash).To(Equal("new"))

			users, err := repo.List(ctx, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
		})
	})
})
