// Package authsession keeps the signed-in state of one portal visitor in step
// with the session store.
package authsession

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/apiclient"
	"github.com/frahmantamala/payment-portal/internal/core/common/validation"
	"github.com/frahmantamala/payment-portal/internal/metrics"
	"github.com/frahmantamala/payment-portal/internal/session"
	"github.com/frahmantamala/payment-portal/internal/user"
)

const TeardownReasonLogout = "logout"

var (
	ErrPasswordMismatch = internal.NewValidationFieldError("confirm_password", "Passwords do not match", internal.ErrCodePasswordMismatch)
	ErrMissingFullName  = internal.NewValidationFieldError("full_name", "Please enter your full name", internal.ErrCodeValidationFailed)
	ErrInvalidEmail     = internal.NewValidationFieldError("email", "Please enter a valid email address", internal.ErrCodeValidationFailed)
)

// Gateway is the slice of the API client the manager calls.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*apiclient.LoginResult, error)
	Register(ctx context.Context, dto user.RegisterDTO) (*user.User, error)
}

// Profile is the registration form.
type Profile struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
	Department      string
	Role            user.Role
	ManagerID       string
}

func (p Profile) Validate() error {
	if p.Password != p.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if strings.TrimSpace(p.FullName) == "" {
		return ErrMissingFullName
	}
	v := validation.NewValidator()
	v.Field("email", strings.TrimSpace(p.Email)).Required("Please enter your email").Email()
	if appErr := v.Validate(); appErr != nil {
		return ErrInvalidEmail
	}
	return nil
}

type Manager struct {
	store   *session.Store
	gateway Gateway
	logger  *slog.Logger

	mu          sync.RWMutex
	user        *user.User
	loading     bool
	unsubscribe func()
}

// NewManager returns a manager in the loading state. Call Init to hydrate it.
func NewManager(store *session.Store, gateway Gateway, logger *slog.Logger) *Manager {
	m := &Manager{
		store:   store,
		gateway: gateway,
		logger:  logger,
		loading: true,
	}
	m.unsubscribe = store.Subscribe(m.onChange)
	return m
}

// Init restores the session from the store. Malformed user data is discarded
// and the visitor starts signed out. A backend failure is returned and the
// manager stays loading.
func (m *Manager) Init(ctx context.Context) error {
	token, raw, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("failed to restore session", "session_id", m.store.ID(), "error", err)
		return err
	}

	var restored *user.User
	if token != "" && len(raw) > 0 {
		var u user.User
		if err := json.Unmarshal(raw, &u); err != nil {
			m.logger.Warn("discarding malformed session user", "session_id", m.store.ID(), "error", err)
			if clearErr := m.store.Clear(ctx, "malformed"); clearErr != nil {
				m.logger.Error("failed to clear malformed session", "error", clearErr)
			}
		} else {
			restored = &u
		}
	}

	m.mu.Lock()
	m.user = restored
	m.loading = false
	m.mu.Unlock()
	return nil
}

func (m *Manager) Login(ctx context.Context, username, password string) (*user.User, error) {
	result, err := m.gateway.Login(ctx, strings.TrimSpace(username), password)
	if err != nil {
		m.logger.Info("login failed", "username", username, "error", err)
		return nil, err
	}
	if err := m.store.Save(ctx, result.AccessToken, result.User); err != nil {
		return nil, err
	}
	m.logger.Info("user logged in", "user_id", result.User.ID, "role", result.User.Role)
	return result.User, nil
}

// Register creates the account. It does not sign the visitor in.
func (m *Manager) Register(ctx context.Context, p Profile) (*user.User, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	created, err := m.gateway.Register(ctx, user.RegisterDTO{
		Email:      strings.TrimSpace(p.Email),
		Password:   p.Password,
		FullName:   strings.TrimSpace(p.FullName),
		Department: strings.TrimSpace(p.Department),
		Role:       p.Role,
		ManagerID:  strings.TrimSpace(p.ManagerID),
	})
	if err != nil {
		m.logger.Info("registration failed", "email", p.Email, "error", err)
		return nil, err
	}
	return created, nil
}

// Logout never fails. Calling it twice is harmless.
func (m *Manager) Logout(ctx context.Context) {
	if m.CurrentUser() != nil {
		metrics.SessionTeardownsTotal.WithLabelValues(TeardownReasonLogout).Inc()
	}
	if err := m.store.Clear(ctx, TeardownReasonLogout); err != nil {
		m.logger.Error("failed to clear session on logout", "error", err)
	}
	m.mu.Lock()
	m.user = nil
	m.loading = false
	m.mu.Unlock()
}

func (m *Manager) CurrentUser() *user.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) IsAuthenticated() bool {
	return m.CurrentUser() != nil
}

func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Close detaches the manager from the store.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Manager) onChange(c session.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Cleared {
		m.user = nil
		return
	}
	m.user = c.User
	m.loading = false
}

// IsExpired reports whether err means the session was torn down by a 401.
func IsExpired(err error) bool {
	return errors.Is(err, apiclient.ErrSessionExpired)
}
