package portal

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/frahmantamala/payment-portal/internal/apiclient"
	"github.com/frahmantamala/payment-portal/internal/authsession"
	"github.com/frahmantamala/payment-portal/internal/guard"
	"github.com/frahmantamala/payment-portal/internal/session"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

// visitor is everything the portal knows about one browser for the
// duration of one request.
type visitor struct {
	store *session.Store
	api   *apiclient.Client
	auth  *authsession.Manager
}

type visitorKey struct{}

func visitorFrom(ctx context.Context) *visitor {
	v, _ := ctx.Value(visitorKey{}).(*visitor)
	return v
}

func guardSession(ctx context.Context) guard.Session {
	v := visitorFrom(ctx)
	if v == nil {
		return nil
	}
	return v.auth
}

// withVisitor binds the session cookie to a store, an API client and an auth
// manager, and puts them in the request context.
func (s *Server) withVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := s.sessionID(w, r)

		store := session.NewStore(s.backend, sid)
		client := s.api.WithStore(store)
		manager := authsession.NewManager(store, client, s.logger)
		defer manager.Close()

		if err := manager.Init(r.Context()); err != nil {
			logger.From(r.Context()).Warn("session restore failed", "error", err)
		}

		ctx := context.WithValue(r.Context(), visitorKey{}, &visitor{store: store, api: client, auth: manager})
		if u := manager.CurrentUser(); u != nil {
			ctx = logger.With(ctx, "userID", u.ID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the visitor's session id, issuing a new cookie when the
// browser has none or sends a malformed one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}
