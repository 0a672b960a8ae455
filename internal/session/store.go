// Package session holds the per-visitor portal session: the API token, the
// cached user record and the theme preference.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/frahmantamala/payment-portal/internal/user"
)

const (
	KeyToken = "token"
	KeyUser  = "user"
	KeyTheme = "theme"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var ErrInvalidTheme = errors.New("theme must be light or dark")

// Backend persists string values per session id. Implementations must make
// SetMany and Delete atomic for the keys they touch.
type Backend interface {
	Get(ctx context.Context, sid string, keys ...string) (map[string]string, error)
	SetMany(ctx context.Context, sid string, values map[string]string) error
	Delete(ctx context.Context, sid string, keys ...string) error
}

// Change is delivered to subscribers after every Save and Clear.
type Change struct {
	Token   string
	User    *user.User
	Cleared bool
	Reason  string
}

// Store is the session of one visitor, bound to its session id.
type Store struct {
	backend Backend
	sid     string

	mu        sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

func NewStore(backend Backend, sid string) *Store {
	return &Store{
		backend:   backend,
		sid:       sid,
		listeners: map[int]func(Change){},
	}
}

func (s *Store) ID() string {
	return s.sid
}

// Token returns the stored API token, or "" when signed out.
func (s *Store) Token(ctx context.Context) (string, error) {
	values, err := s.backend.Get(ctx, s.sid, KeyToken)
	if err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	return values[KeyToken], nil
}

// Load returns the token and the raw user JSON. Decoding the user is left to
// the caller so malformed data can be told apart from a backend failure.
func (s *Store) Load(ctx context.Context) (token string, rawUser []byte, err error) {
	values, err := s.backend.Get(ctx, s.sid, KeyToken, KeyUser)
	if err != nil {
		return "", nil, fmt.Errorf("session load: %w", err)
	}
	if raw, ok := values[KeyUser]; ok {
		rawUser = []byte(raw)
	}
	return values[KeyToken], rawUser, nil
}

// Save writes token and user together.
func (s *Store) Save(ctx context.Context, token string, u *user.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	if err := s.backend.SetMany(ctx, s.sid, map[string]string{
		KeyToken: token,
		KeyUser:  string(raw),
	}); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	s.notify(Change{Token: token, User: u})
	return nil
}

// Clear removes token and user. The theme survives sign-out.
func (s *Store) Clear(ctx context.Context, reason string) error {
	err := s.backend.Delete(ctx, s.sid, KeyToken, KeyUser)
	// subscribers drop their state even when the backend failed
	s.notify(Change{Cleared: true, Reason: reason})
	if err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

func (s *Store) Theme(ctx context.Context) (string, error) {
	values, err := s.backend.Get(ctx, s.sid, KeyTheme)
	if err != nil {
		return "", fmt.Errorf("session theme: %w", err)
	}
	if theme := values[KeyTheme]; theme == ThemeDark {
		return theme, nil
	}
	return ThemeLight, nil
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return ErrInvalidTheme
	}
	return s.backend.SetMany(ctx, s.sid, map[string]string{KeyTheme: theme})
}

// Subscribe registers fn for every later change and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.mu.Lock()
	listeners := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
}
