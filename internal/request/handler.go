package request

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-portal/internal/transport"
	"github.com/frahmantamala/payment-portal/internal/user"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

const maxUploadMemory = 10 << 20

type ServiceAPI interface {
	Submit(ctx context.Context, actor *user.User, dto SubmitDTO) (*PaymentRequest, error)
	Get(ctx context.Context, actor *user.User, id string) (*PaymentRequest, error)
	List(ctx context.Context, actor *user.User, filter ListFilter) ([]*PaymentRequest, error)
	Decide(ctx context.Context, actor *user.User, id string, dto DecisionDTO) (*PaymentRequest, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// CreateRequest handles POST /api/requests. It accepts a JSON body or the
// multipart form the portal sends with supporting documents.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var dto SubmitDTO
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		parsed, err := submitFromForm(r)
		if err != nil {
			h.Logger.Debug("CreateRequest: invalid form", "error", err)
			h.WriteError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		dto = parsed
	default:
		if !h.DecodeJSON(w, r, &dto) {
			return
		}
	}

	created, err := h.Service.Submit(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateRequest: request created",
		"request_id", created.ID,
		"user_id", actor.ID,
		"documents", len(created.SupportingDocuments))

	h.WriteJSON(w, http.StatusCreated, created)
}

func submitFromForm(r *http.Request) (SubmitDTO, error) {
	var dto SubmitDTO
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return dto, err
		}
	} else if err := r.ParseForm(); err != nil {
		return dto, err
	}

	dto.RequestType = r.FormValue("request_type")
	dto.Description = r.FormValue("description")
	dto.RequestedPaymentDate = r.FormValue("requested_payment_date")
	// unparsable amounts fall through to the positive-amount check
	if raw := strings.TrimSpace(r.FormValue("amount")); raw != "" {
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			dto.Amount = amount
		}
	}

	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["supporting_documents"] {
			dto.Documents = append(dto.Documents, Document{
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				SizeBytes:   fh.Size,
			})
		}
	}
	return dto, nil
}

// ListRequests handles GET /api/requests?status=&skip=&limit=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	limit, offset := h.Pagination(r)
	filter := ListFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}

	requests, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, requests)
}

// GetRequest handles GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	found, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, found)
}

// DecideRequest handles PUT /api/requests/{id}/approve
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var dto DecisionDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	id := chi.URLParam(r, "id")
	updated, err := h.Service.Decide(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

// ListTypes handles GET /api/request-types
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, Types())
}
