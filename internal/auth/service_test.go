package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/user"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

const testSecret = "test-secret-key-with-at-least-32-chars!"

// Mock user store keyed by email
type mockUserStore struct {
	users  map[string]*user.User
	hashes map[string]string
}

func newMockUserStore() *mockUserStore {
	hasher := NewBcryptHasher(4)
	hash, _ := hasher.Hash("correct_password")

	m := &mockUserStore{users: map[string]*user.User{}, hashes: map[string]string{}}
	for _, u := range []*user.User{
		{ID: "u-1", Email: "user@example.com", FullName: "Eve Employee", Role: user.RoleEmployee, IsActive: true},
		{ID: "u-2", Email: "manager@example.com", FullName: "Max Manager", Role: user.RoleManager, IsActive: true},
		{ID: "u-3", Email: "gone@example.com", FullName: "Gone", Role: user.RoleEmployee, IsActive: false},
	} {
		m.users[u.Email] = u
		m.hashes[u.Email] = hash
	}
	return m
}

func (m *mockUserStore) Create(_ context.Context, u *user.User, hash string) error {
	u.ID = "u-new"
	m.users[u.Email] = u
	m.hashes[u.Email] = hash
	return nil
}

func (m *mockUserStore) GetByID(_ context.Context, id string) (*user.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*user.User, string, error) {
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, "", user.ErrNotFound
	}
	return u, m.hashes[u.Email], nil
}

type mockManagerChecker struct {
	err error
}

func (m *mockManagerChecker) CheckManager(_ context.Context, _ string) error {
	return m.err
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		store    *mockUserStore
		tokens   *JWTTokenGenerator
		managers *mockManagerChecker
		service  *Service
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		store = newMockUserStore()
		tokens = NewJWTTokenGenerator(testSecret, time.Hour)
		managers = &mockManagerChecker{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = NewService(store, tokens, NewBcryptHasher(4), managers, logger)
	})

	ginkgo.Describe("Login", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return a bearer token and the user", func() {
				// Given a registered active user
				dto := LoginDTO{Username: "user@example.com", Password: "correct_password"}

				// When logging in
				resp, err := service.Login(ctx, dto)

				// Then a token is issued with the user record
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(resp.TokenType).To(gomega.Equal("bearer"))
				gomega.Expect(resp.AccessToken).NotTo(gomega.BeEmpty())
				gomega.Expect(resp.User.Role).To(gomega.Equal(user.RoleEmployee))

				claims, err := tokens.ValidateToken(resp.AccessToken)
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("u-1"))
				gomega.Expect(claims.Role).To(gomega.Equal(user.RoleEmployee))
			})
		})

		ginkgo.Context("when credentials are wrong", func() {
			ginkgo.It("should return the same error for unknown email and wrong password", func() {
				_, err := service.Login(ctx, LoginDTO{Username: "nobody@example.com", Password: "x"})
				gomega.Expect(err).To(gomega.MatchError(ErrInvalidCredentials))

				_, err = service.Login(ctx, LoginDTO{Username: "user@example.com", Password: "wrong"})
				gomega.Expect(err).To(gomega.MatchError(ErrInvalidCredentials))
			})
		})

		ginkgo.Context("when the account is inactive", func() {
			ginkgo.It("should refuse the login", func() {
				_, err := service.Login(ctx, LoginDTO{Username: "gone@example.com", Password: "correct_password"})
				gomega.Expect(err).To(gomega.MatchError(ErrUserInactive))
			})
		})

		ginkgo.Context("when fields are missing", func() {
			ginkgo.It("should return a validation error", func() {
				_, err := service.Login(ctx, LoginDTO{Username: "", Password: "x"})
				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
			})
		})
	})

	ginkgo.Describe("Register", func() {
		ginkgo.It("should create an active employee by default", func() {
			// Given a new email
			dto := user.RegisterDTO{Email: " New@Example.com ", Password: "longenough", FullName: "New Person"}

			// When registering
			u, err := service.Register(ctx, dto)

			// Then the user is created with normalized fields
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u.Email).To(gomega.Equal("new@example.com"))
			gomega.Expect(u.Role).To(gomega.Equal(user.RoleEmployee))
			gomega.Expect(u.IsActive).To(gomega.BeTrue())
			gomega.Expect(store.hashes["new@example.com"]).NotTo(gomega.Equal("longenough"))
		})

		ginkgo.It("should reject an email that is already registered", func() {
			_, err := service.Register(ctx, user.RegisterDTO{Email: "user@example.com", Password: "longenough", FullName: "Dup"})
			gomega.Expect(err).To(gomega.MatchError(ErrEmailRegistered))
		})

		ginkgo.It("should reject a short password", func() {
			_, err := service.Register(ctx, user.RegisterDTO{Email: "short@example.com", Password: "short", FullName: "S"})
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(store.users).NotTo(gomega.HaveKey("short@example.com"))
		})

		ginkgo.It("should surface an invalid manager", func() {
			managers.err = internal.NewValidationFieldError("manager_id", "Manager not found", internal.ErrCodeUserNotFound)
			_, err := service.Register(ctx, user.RegisterDTO{Email: "m@example.com", Password: "longenough", FullName: "M", ManagerID: "nope"})
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err.Error()).To(gomega.Equal("Manager not found"))
		})
	})

	ginkgo.Describe("Token validation", func() {
		ginkgo.It("should reject expired tokens", func() {
			expired := NewJWTTokenGenerator(testSecret, -time.Minute)
			token, err := expired.GenerateAccessToken(&user.User{ID: "u-1", Email: "user@example.com", Role: user.RoleEmployee})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = service.Authenticate(ctx, token)
			gomega.Expect(err).To(gomega.MatchError(ErrTokenExpired))
		})

		ginkgo.It("should reject tokens signed with another secret", func() {
			other := NewJWTTokenGenerator("another-secret-key-with-32-chars-or-more", time.Hour)
			token, _ := other.GenerateAccessToken(&user.User{ID: "u-1"})

			_, err := service.Authenticate(ctx, token)
			gomega.Expect(err).To(gomega.MatchError(ErrInvalidToken))
		})

		ginkgo.It("should resolve a valid token to its user", func() {
			token, _ := tokens.GenerateAccessToken(&user.User{ID: "u-2", Email: "manager@example.com", Role: user.RoleManager})
			u, err := service.Authenticate(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u.Email).To(gomega.Equal("manager@example.com"))
		})
	})

	ginkgo.Describe("Handler", func() {
		var handler *Handler

		ginkgo.BeforeEach(func() {
			handler = NewHandler(service)
		})

		ginkgo.It("should accept form-encoded login", func() {
			form := url.Values{"username": {"user@example.com"}, "password": {"correct_password"}}
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"token_type":"bearer"`))
		})

		ginkgo.It("should return the failure detail on bad credentials", func() {
			form := url.Values{"username": {"user@example.com"}, "password": {"nope"}}
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("Incorrect email or password"))
		})

		ginkgo.It("should return 409 for duplicate registration", func() {
			body := `{"email":"user@example.com","password":"longenough","full_name":"Dup"}`
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusConflict))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("Email already registered"))
		})

		ginkgo.Describe("AuthMiddleware and RequireRoles", func() {
			var protected http.Handler

			ginkgo.BeforeEach(func() {
				rbac := NewRBACAuthorization(nil)
				protected = handler.AuthMiddleware(rbac.RequireHRAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNoContent)
				})))
			})

			ginkgo.It("should return 401 without a token", func() {
				rec := httptest.NewRecorder()
				protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			})

			ginkgo.It("should return 403 for an insufficient role", func() {
				token, _ := tokens.GenerateAccessToken(&user.User{ID: "u-2", Email: "manager@example.com", Role: user.RoleManager})
				req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				rec := httptest.NewRecorder()
				protected.ServeHTTP(rec, req)
				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			})

			ginkgo.It("should pass an hr user through", func() {
				store.users["hr@example.com"] = &user.User{ID: "u-4", Email: "hr@example.com", Role: user.RoleHR, IsActive: true}
				token, _ := tokens.GenerateAccessToken(store.users["hr@example.com"])
				req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				rec := httptest.NewRecorder()
				protected.ServeHTTP(rec, req)
				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			})
		})
	})
})
