// Package guard decides whether a portal page may render for the current visitor.
package guard

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payment-portal/internal/user"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

type State int

const (
	StateChecking State = iota
	StateUnauthenticated
	StateForbidden
	StateAllowed
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateForbidden:
		return "forbidden"
	case StateAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Evaluate maps the session state onto a navigation outcome. An empty allowed
// set admits any signed-in role.
func Evaluate(loading bool, u *user.User, allowed []user.Role) State {
	if loading {
		return StateChecking
	}
	if u == nil {
		return StateUnauthenticated
	}
	if len(allowed) > 0 && !u.Role.In(allowed...) {
		return StateForbidden
	}
	return StateAllowed
}

// Session is what the guard reads from the visitor's auth manager.
type Session interface {
	Loading() bool
	CurrentUser() *user.User
}

// SessionFunc resolves the visitor's session from the request context.
type SessionFunc func(ctx context.Context) Session

type Guard struct {
	session SessionFunc
}

func New(session SessionFunc) *Guard {
	return &Guard{session: session}
}

// Require is chi middleware that renders the wrapped page only when the
// visitor's role is in roles.
func (g *Guard) Require(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := g.session(r.Context())
			var (
				loading = true
				current *user.User
			)
			if s != nil {
				loading = s.Loading()
				current = s.CurrentUser()
			}

			state := Evaluate(loading, current, roles)
			switch state {
			case StateChecking:
				renderChecking(w)
			case StateUnauthenticated:
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			case StateForbidden:
				logger.From(r.Context()).Info("page access denied",
					slog.String("path", r.URL.Path),
					slog.String("role", string(current.Role)))
				http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
			case StateAllowed:
				next.ServeHTTP(w, r)
			}
		})
	}
}

var checkingPage = template.Must(template.New("checking").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Loading</title></head>
<body><p class="loading">Checking your session&hellip;</p></body></html>`))

func renderChecking(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", "2")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = checkingPage.Execute(w, nil)
}
