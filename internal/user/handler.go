package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-portal/internal/transport"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, actor *User, limit, offset int) ([]*User, error)
	Update(ctx context.Context, actor *User, id string, dto UpdateUserDTO) (*User, error)
	UpdateProfile(ctx context.Context, actor *User, dto ProfileDTO) (*User, error)
	ChangePassword(ctx context.Context, actor *User, dto PasswordChangeDTO) error
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

// GetCurrentUser handles GET /api/auth/me and GET /api/user/profile
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	u, err := h.Service.GetByID(r.Context(), actor.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// ListUsers handles GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	limit, offset := h.Pagination(r)
	users, err := h.Service.List(r.Context(), actor, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, users)
}

// UpdateUser handles PUT /api/admin/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var dto UpdateUserDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	updated, err := h.Service.Update(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

// UpdateProfile handles PUT /api/user/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var dto ProfileDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	updated, err := h.Service.UpdateProfile(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

// ChangePassword handles PUT /api/user/security
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var dto PasswordChangeDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	if err := h.Service.ChangePassword(r.Context(), actor, dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}
