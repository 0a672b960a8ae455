package report

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-portal/internal/transport"
	"github.com/frahmantamala/payment-portal/internal/user"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

type ServiceAPI interface {
	Analytics(ctx context.Context, actor *user.User) (*Analytics, error)
	Summary(ctx context.Context, actor *user.User) error
	Paycheck(ctx context.Context, actor *user.User, id string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetAnalytics handles GET /api/reports/analytics
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	analytics, err := h.Service.Analytics(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, analytics)
}

// GetSummary handles GET /api/reports/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	if err := h.Service.Summary(r.Context(), actor); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPaycheck handles GET /api/reports/paycheck/{id}
func (h *Handler) GetPaycheck(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	if err := h.Service.Paycheck(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
