package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/payment-portal/internal/auth"
	"github.com/frahmantamala/payment-portal/internal/report"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/transport/middleware"
	"github.com/frahmantamala/payment-portal/internal/transport/swagger"
	"github.com/frahmantamala/payment-portal/internal/user"
)

type Handlers struct {
	Auth    *auth.Handler
	User    *user.Handler
	Request *request.Handler
	Report  *report.Handler
}

type Options struct {
	DB             *sql.DB
	OpenAPIPath    string
	AllowedOrigins string
	MetricsPath    string
	// Validator checks requests against the OpenAPI document. Nil disables it.
	Validator func(http.Handler) http.Handler
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(opts.DB, logger)
	rbac := auth.NewRBACAuthorization(logger)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.Instrument("api"))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	specPath := opts.OpenAPIPath
	if specPath == "" {
		specPath = "./api/openapi.yml"
	}
	router.Get(swagger.SpecPath, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specPath)
	})
	router.Handle("/swagger/*", swagger.Handler())
	if opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, promhttp.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		if opts.Validator != nil {
			r.Use(opts.Validator)
		}

		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Request != nil {
			r.Get("/request-types", h.Request.ListTypes)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", h.Auth.Login)
			ar.Post("/register", h.Auth.Register)
			if h.User != nil {
				ar.With(h.Auth.AuthMiddleware).Get("/me", h.User.GetCurrentUser)
			}
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Request != nil {
				pr.Route("/requests", func(rr chi.Router) {
					rr.Post("/", h.Request.CreateRequest)
					rr.Get("/", h.Request.ListRequests)
					rr.Get("/{id}", h.Request.GetRequest)
					rr.With(rbac.RequireApprover()).Put("/{id}/approve", h.Request.DecideRequest)
				})
			}

			if h.User != nil {
				pr.Route("/user", func(ur chi.Router) {
					ur.Get("/profile", h.User.GetCurrentUser)
					ur.Put("/profile", h.User.UpdateProfile)
					ur.Put("/security", h.User.ChangePassword)
				})

				pr.Route("/admin/users", func(ar chi.Router) {
					ar.Use(rbac.RequireHRAdmin())
					ar.Get("/", h.User.ListUsers)
					ar.Put("/{id}", h.User.UpdateUser)
				})
			}

			if h.Report != nil {
				pr.Route("/reports", func(rr chi.Router) {
					rr.Get("/analytics", h.Report.GetAnalytics)
					rr.With(rbac.RequireApprover()).Get("/summary", h.Report.GetSummary)
					rr.Get("/paycheck/{id}", h.Report.GetPaycheck)
				})
			}
		})
	})
}
