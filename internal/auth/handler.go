package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/payment-portal/internal/transport"
	"github.com/frahmantamala/payment-portal/internal/user"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

const maxLoginFormMemory = 1 << 20

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

// Login handles POST /api/auth/login (form fields username, password).
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxLoginFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	dto := LoginDTO{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}

	resp, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.Logger.Debug("authentication failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto user.RegisterDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	created, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, created)
}

// AuthMiddleware resolves the bearer token and stores the user in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.WriteError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		u, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.Logger.Debug("token validation failed", "error", err)
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.HandleServiceError(w, err)
			return
		}

		ctx := user.NewContext(r.Context(), u)
		ctx = logger.With(ctx, "user_id", u.ID, "role", string(u.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
