package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-portal/internal/auth"
	"github.com/frahmantamala/payment-portal/internal/user"
	userPostgres "github.com/frahmantamala/payment-portal/internal/user/postgres"
)

const seedPassword = "password"

type seedUser struct {
	Email      string
	FullName   string
	Role       user.Role
	Department string
	// ReportsTo names another seed user's email.
	ReportsTo string
}

// seeded in order so managers exist before their reports
var seedUsers = []seedUser{
	{Email: "admin@mail.com", FullName: "Padil Admin", Role: user.RoleAdmin, Department: "IT"},
	{Email: "hr@mail.com", FullName: "Hana HR", Role: user.RoleHR, Department: "People"},
	{Email: "manager@mail.com", FullName: "Max Manager", Role: user.RoleManager, Department: "Engineering"},
	{Email: "fadhil@mail.com", FullName: "Fadhil", Role: user.RoleEmployee, Department: "Engineering", ReportsTo: "manager@mail.com"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed one user per role for development and testing. Every account uses the password "password".`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		ctx := context.Background()

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gdb, err := initGorm(db, cfg.Env)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"request_documents", "approval_history", "payment_requests", "users"} {
				if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		repo := userPostgres.NewUserRepository(gdb)
		hash, err := auth.NewBcryptHasher(cfg.Security.BCryptCost).Hash(seedPassword)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}

		ids := map[string]string{}
		for _, s := range seedUsers {
			existing, _, err := repo.GetByEmail(ctx, s.Email)
			switch {
			case err == nil:
				fmt.Printf("%s already exists; skipping\n", s.Email)
				ids[s.Email] = existing.ID
				continue
			case !errors.Is(err, user.ErrNotFound):
				log.Fatalf("failed to look up %s: %v", s.Email, err)
			}

			u := &user.User{
				Email:      s.Email,
				FullName:   s.FullName,
				Role:       s.Role,
				Department: s.Department,
				ManagerID:  ids[s.ReportsTo],
				IsActive:   true,
			}
			if err := repo.Create(ctx, u, hash); err != nil {
				log.Fatalf("failed to insert %s: %v", s.Email, err)
			}
			ids[s.Email] = u.ID
			fmt.Printf("Seeded %s user: %s\n", s.Role, s.Email)
		}

		fmt.Println("Users seeded successfully")
	},
}
