// Package portal is the browser-facing server. It owns each visitor's
// session, calls the payment API on the visitor's behalf, guards pages by
// role and renders HTML views.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/apiclient"
	"github.com/frahmantamala/payment-portal/internal/guard"
	"github.com/frahmantamala/payment-portal/internal/session"
	"github.com/frahmantamala/payment-portal/internal/transport/middleware"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

const (
	serviceName     = "portal"
	maxUploadMemory = 10 << 20
)

type Config struct {
	CookieName         string
	CookieSecure       bool
	LoginRatePerMinute int
	MetricsPath        string
}

// ConfigFrom maps the portal section of the application config.
func ConfigFrom(cfg internal.PortalConfig, mc internal.MetricsConfig) Config {
	c := Config{
		CookieName:         cfg.CookieName,
		CookieSecure:       cfg.CookieSecure,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	}
	if mc.Enabled {
		c.MetricsPath = mc.Path
	}
	return c
}

type Server struct {
	cfg     Config
	backend session.Backend
	api     *apiclient.Client
	views   *views
	guard   *guard.Guard
	limiter *loginLimiter
	logger  *slog.Logger
	now     func() time.Time
}

func NewServer(cfg Config, backend session.Backend, api *apiclient.Client, logger *slog.Logger) (*Server, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = "portal_sid"
	}
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		backend: backend,
		api:     api,
		views:   v,
		guard:   guard.New(guardSession),
		limiter: newLoginLimiter(cfg.LoginRatePerMinute),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run sweeps idle login limiter buckets until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.limiter.run(ctx)
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Instrument(serviceName))
	r.Use(middleware.LoggingMiddleware(s.logger))
	r.Use(middleware.RecoveryMiddleware(s.logger))

	r.Get("/healthz", s.health)
	if s.cfg.MetricsPath != "" {
		r.Handle(s.cfg.MetricsPath, promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withVisitor)

		r.Get("/", s.home)
		r.Get("/login", s.loginPage)
		r.Post("/login", s.login)
		r.Get("/register", s.registerPage)
		r.Post("/register", s.register)
		r.Post("/logout", s.logout)
		r.Get("/unauthorized", s.unauthorized)
		r.Post("/theme", s.setTheme)

		r.Group(func(r chi.Router) {
			r.Use(s.guard.Require())
			r.Get("/dashboard", s.dashboard)
			r.Get("/requests", s.listRequests)
			r.Get("/requests/{id}", s.requestDetail)
			r.Post("/requests/{id}/decision", s.decide)
			r.Get("/requests/{id}/paycheck", s.paycheck)
			r.Get("/settings", s.settings)
			r.Post("/settings/{section}", s.saveSettings)
			r.Get("/analytics", s.analytics)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.guard.Require(guard.Submitters...))
			r.Get("/requests/new", s.newRequestPage)
			r.Post("/requests/new", s.submitRequest)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.guard.Require(guard.Approvers...))
			r.Get("/approvals", s.approvals)
			r.Get("/analytics/summary", s.summaryReport)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.guard.Require(guard.HRAdmin...))
			r.Get("/admin/requests", s.adminRequests)
			r.Get("/admin/users", s.adminUsers)
			r.Post("/admin/users/{id}", s.updateUser)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	if visitorFrom(r.Context()).auth.IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

// newPage fills the layout fields shared by every view.
func (s *Server) newPage(r *http.Request, title string) page {
	v := visitorFrom(r.Context())
	p := page{Title: title, Path: r.URL.Path, Theme: session.ThemeLight}
	if v == nil {
		return p
	}
	if theme, err := v.store.Theme(r.Context()); err == nil {
		p.Theme = theme
	}
	if u := v.auth.CurrentUser(); u != nil {
		p.User = u
		p.Menu = guard.Menu(u.Role)
	}
	return p
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if err := s.views.render(w, status, name, p); err != nil {
		logger.From(r.Context()).Error("failed to render view", "view", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// expired sends the visitor to login when err came from a 401. The session
// has already been cleared by the API client.
func (s *Server) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, apiclient.ErrSessionExpired) {
		return false
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
	return true
}

// errorMessage is the banner text for err: the message of a local
// validation or authorization error, the API's message, or fallback.
func errorMessage(err error, fallback string) string {
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr.Error()
	}
	return apiclient.Message(err, fallback)
}
