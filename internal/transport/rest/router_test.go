package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/auth"
	"github.com/frahmantamala/payment-portal/internal/user"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "REST Router Suite")
}

var people = map[string]*user.User{
	"emp-token": {ID: "u-1", Email: "eve@example.com", FullName: "Eve", Role: user.RoleEmployee, IsActive: true},
	"hr-token":  {ID: "u-3", Email: "hana@example.com", FullName: "Hana", Role: user.RoleHR, IsActive: true},
}

type stubAuth struct{}

func (stubAuth) Login(context.Context, auth.LoginDTO) (*auth.LoginResponse, error) {
	return nil, internal.ErrInvalidCredentials
}

func (stubAuth) Register(context.Context, user.RegisterDTO) (*user.User, error) {
	return nil, errors.New("not used")
}

func (stubAuth) Authenticate(_ context.Context, token string) (*user.User, error) {
	if u, ok := people[token]; ok {
		return u, nil
	}
	return nil, internal.ErrInvalidToken
}

type stubUsers struct{}

func (stubUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	for _, u := range people {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, internal.ErrUserNotFound
}

func (stubUsers) List(context.Context, *user.User, int, int) ([]*user.User, error) {
	return []*user.User{people["emp-token"], people["hr-token"]}, nil
}

func (stubUsers) Update(context.Context, *user.User, string, user.UpdateUserDTO) (*user.User, error) {
	return nil, errors.New("not used")
}

func (stubUsers) UpdateProfile(context.Context, *user.User, user.ProfileDTO) (*user.User, error) {
	return nil, errors.New("not used")
}

func (stubUsers) ChangePassword(context.Context, *user.User, user.PasswordChangeDTO) error {
	return errors.New("not used")
}

var _ = Describe("RegisterAllRoutes", func() {
	var (
		router *chi.Mux
		mock   sqlmock.Sqlmock
	)

	BeforeEach(func() {
		db, m, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		Expect(err).NotTo(HaveOccurred())
		mock = m
		DeferCleanup(func() {
			mock.ExpectClose()
			Expect(db.Close()).To(Succeed())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		router = chi.NewRouter()
		RegisterAllRoutes(router, Handlers{
			Auth: auth.NewHandler(stubAuth{}),
			User: user.NewHandler(stubUsers{}),
		}, Options{DB: db, AllowedOrigins: "*"}, logger)
	})

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("answers ping without touching the database", func() {
		Expect(get("/api/ping", "").Code).To(Equal(http.StatusOK))
	})

	It("reports a healthy database", func() {
		mock.ExpectPing()

		rec := get("/api/health", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Status).To(Equal(HealthHealthy))
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("reports 503 when the database is down", func() {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		rec := get("/api/health", "")

		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		var body HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Components["postgres"].Message).To(ContainSubstring("connection refused"))
	})

	It("requires a bearer token for the current user", func() {
		rec := get("/api/auth/me", "")

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Header().Get("WWW-Authenticate")).To(Equal("Bearer"))
	})

	It("serves the current user", func() {
		rec := get("/api/auth/me", "emp-token")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("eve@example.com"))
	})

	It("keeps the user directory away from employees", func() {
		Expect(get("/api/admin/users", "emp-token").Code).To(Equal(http.StatusForbidden))
	})

	It("lists users for hr", func() {
		rec := get("/api/admin/users", "hr-token")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var users []user.User
		Expect(json.Unmarshal(rec.Body.Bytes(), &users)).To(Succeed())
		Expect(users).To(HaveLen(2))
	})
})
