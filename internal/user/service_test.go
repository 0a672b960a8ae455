package user_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/user"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Module Suite")
}

type mockUserRepository struct {
	users     map[string]*user.User
	hashes    map[string]string
	updateErr error
}

func newMockUserRepository(users ...*user.User) *mockUserRepository {
	m := &mockUserRepository{users: map[string]*user.User{}, hashes: map[string]string{}}
	for _, u := range users {
		m.users[u.ID] = u
		m.hashes[u.ID] = "hash:password123"
	}
	return m
}

func (m *mockUserRepository) Create(_ context.Context, u *user.User, hash string) error {
	m.users[u.ID] = u
	m.hashes[u.ID] = hash
	return nil
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*user.User, string, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, m.hashes[u.ID], nil
		}
	}
	return nil, "", user.ErrNotFound
}

func (m *mockUserRepository) List(_ context.Context, _, _ int) ([]*user.User, error) {
	out := make([]*user.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepository) Update(_ context.Context, u *user.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, id, hash string) error {
	m.hashes[id] = hash
	return nil
}

type fakeAssignments struct {
	released []string
	err      error
}

func (f *fakeAssignments) UnassignApprover(_ context.Context, approverID string) (int64, error) {
	f.released = append(f.released, approverID)
	return 1, f.err
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hash:" + password, nil }

func (fakeHasher) Verify(hash, password string) error {
	if hash != "hash:"+password {
		return errors.New("mismatch")
	}
	return nil
}

var _ = Describe("Role", func() {
	It("parses only the closed set", func() {
		for _, r := range user.Roles() {
			parsed, err := user.ParseRole(string(r))
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(r))
		}
		_, err := user.ParseRole("superuser")
		Expect(err).To(MatchError(user.ErrUnknownRole))
	})

	It("classifies approvers", func() {
		Expect(user.RoleEmployee.IsApprover()).To(BeFalse())
		Expect(user.RoleManager.IsApprover()).To(BeTrue())
		Expect(user.RoleHR.SeesAllRequests()).To(BeTrue())
		Expect(user.RoleManager.SeesAllRequests()).To(BeFalse())
	})
})

var _ = Describe("UserService", func() {
	var (
		service  *user.Service
		repo     *mockUserRepository
		assigned *fakeAssignments
		employee *user.User
		manager  *user.User
		admin    *user.User
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		employee = &user.User{ID: "u-1", Email: "alice@co.com", FullName: "Alice", Role: user.RoleEmployee, IsActive: true}
		manager = &user.User{ID: "u-2", Email: "bob@co.com", FullName: "Bob", Role: user.RoleManager, IsActive: true}
		admin = &user.User{ID: "u-3", Email: "root@co.com", FullName: "Root", Role: user.RoleAdmin, IsActive: true}
		repo = newMockUserRepository(employee, manager, admin)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		assigned = &fakeAssignments{}
		service = user.NewService(repo, fakeHasher{}, logger).WithAssignments(assigned)
	})

	Describe("List", func() {
		It("is refused to employees and managers", func() {
			_, err := service.List(ctx, employee, 10, 0)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			_, err = service.List(ctx, manager, 10, 0)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("returns the directory to admins", func() {
			users, err := service.List(ctx, admin, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(3))
		})
	})

	Describe("Update", func() {
		It("assigns an approver as manager", func() {
			managerID := manager.ID
			updated, err := service.Update(ctx, admin, employee.ID, user.UpdateUserDTO{ManagerID: &managerID})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.ManagerID).To(Equal(manager.ID))
		})

		It("refuses a non-approver as manager", func() {
			other := &user.User{ID: "u-4", Email: "eve@co.com", Role: user.RoleEmployee}
			repo.users[other.ID] = other
			managerID := other.ID
			_, err := service.Update(ctx, admin, employee.ID, user.UpdateUserDTO{ManagerID: &managerID})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(Equal("Manager must hold an approver role"))
		})

		It("rejects an empty patch", func() {
			_, err := service.Update(ctx, admin, employee.ID, user.UpdateUserDTO{})
			Expect(err).To(MatchError(ContainSubstring("No data to update")))
		})

		It("maps a missing target to ErrUserNotFound", func() {
			name := "x"
			_, err := service.Update(ctx, admin, "missing", user.UpdateUserDTO{FullName: &name})
			Expect(err).To(MatchError(internal.ErrUserNotFound))
		})

		It("releases requests routed to a demoted approver", func() {
			role := user.RoleEmployee
			updated, err := service.Update(ctx, admin, manager.ID, user.UpdateUserDTO{Role: &role})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Role).To(Equal(user.RoleEmployee))
			Expect(assigned.released).To(Equal([]string{manager.ID}))
		})

		It("keeps routing when the role stays an approver", func() {
			name := "Robert"
			role := user.RoleAdmin
			_, err := service.Update(ctx, admin, manager.ID, user.UpdateUserDTO{FullName: &name, Role: &role})
			Expect(err).NotTo(HaveOccurred())
			Expect(assigned.released).To(BeEmpty())
		})

		It("leaves the role unchanged when releasing fails", func() {
			assigned.err = errors.New("db down")
			role := user.RoleEmployee
			_, err := service.Update(ctx, admin, manager.ID, user.UpdateUserDTO{Role: &role})
			Expect(err).To(MatchError("db down"))
			Expect(repo.users[manager.ID].Role).To(Equal(user.RoleManager))
		})
	})

	Describe("ChangePassword", func() {
		It("requires the current password", func() {
			err := service.ChangePassword(ctx, employee, user.PasswordChangeDTO{CurrentPassword: "wrong", NewPassword: "longenough1"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(Equal("Current password is incorrect"))
		})

		It("stores the new hash", func() {
			err := service.ChangePassword(ctx, employee, user.PasswordChangeDTO{CurrentPassword: "password123", NewPassword: "longenough1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.hashes[employee.ID]).To(Equal("hash:longenough1"))
		})

		It("enforces the minimum length", func() {
			err := service.ChangePassword(ctx, employee, user.PasswordChangeDTO{CurrentPassword: "password123", NewPassword: "short"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("new_password must be at least 8"))
		})
	})
})
