package portal

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/apiclient"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/user"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

const (
	recentRequests = 5

	msgPaycheckUnavailable = "Paycheck is only available for approved requests"
)

var ErrUnknownAction = internal.NewValidationFieldError("action", "Please choose approve or reject", internal.ErrCodeInvalidRequestStatus)

type dashboardData struct {
	Total      int
	Pending    int
	Approved   int
	Rejected   int
	AwaitingMe int
	IsApprover bool
	CanSubmit  bool
	Recent     []request.PaymentRequest
}

type listData struct {
	Requests  []request.PaymentRequest
	Statuses  []request.Status
	Status    string
	CanSubmit bool
}

type newRequestForm struct {
	RequestType          string
	Amount               string
	Description          string
	RequestedPaymentDate string
}

type newRequestData struct {
	Types []request.TypeInfo
	Form  newRequestForm
}

type detailData struct {
	Request       *request.PaymentRequest
	CanApprove    bool
	CanPaycheck   bool
	SelfSubmitted bool
}

// filterStatuses are the statuses offered in list filters. Reserved
// intermediate levels never occur and are left out.
var filterStatuses = []request.Status{
	request.StatusPending,
	request.StatusApprovedFinal,
	request.StatusRejected,
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	actor := v.auth.CurrentUser()
	p := s.newPage(r, "Dashboard")

	data := dashboardData{IsApprover: actor.Role.IsApprover(), CanSubmit: request.CanSubmit(actor)}
	requests, err := v.api.ListRequests(r.Context(), apiclient.ListParams{})
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		p.Error = apiclient.Message(err, "Failed to load requests")
	}
	for i := range requests {
		req := &requests[i]
		data.Total++
		switch {
		case req.Status == request.StatusPending:
			data.Pending++
		case req.Status.IsApproved():
			data.Approved++
		case req.Status == request.StatusRejected:
			data.Rejected++
		}
		if request.CanApprove(actor, req) {
			data.AwaitingMe++
		}
	}
	sortNewestFirst(requests)
	if len(requests) > recentRequests {
		requests = requests[:recentRequests]
	}
	data.Recent = requests

	p.Data = data
	s.render(w, r, http.StatusOK, "dashboard", p)
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	actor := visitorFrom(r.Context()).auth.CurrentUser()
	title := "My Requests"
	if actor.Role.IsApprover() {
		title = "Requests"
	}
	s.renderList(w, r, title, request.CanSubmit(actor))
}

func (s *Server) adminRequests(w http.ResponseWriter, r *http.Request) {
	s.renderList(w, r, "All Requests", false)
}

func (s *Server) renderList(w http.ResponseWriter, r *http.Request, title string, canSubmit bool) {
	v := visitorFrom(r.Context())
	p := s.newPage(r, title)
	data := listData{Statuses: filterStatuses, CanSubmit: canSubmit}

	params := apiclient.ListParams{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := request.ParseStatus(raw)
		if err != nil {
			p.Error = "Unknown status filter"
			p.Data = data
			s.render(w, r, http.StatusBadRequest, "requests", p)
			return
		}
		params.Status = status
		data.Status = raw
	}

	requests, err := v.api.ListRequests(r.Context(), params)
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		p.Error = apiclient.Message(err, "Failed to fetch requests")
	}
	sortNewestFirst(requests)
	data.Requests = requests

	p.Data = data
	s.render(w, r, http.StatusOK, "requests", p)
}

func (s *Server) newRequestPage(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "New Request")
	p.Data = newRequestData{Types: request.Types()}
	s.render(w, r, http.StatusOK, "request_new", p)
}

// submitRequest validates locally before any call; an invalid form is
// re-rendered with the first message and never reaches the API.
func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	actor := v.auth.CurrentUser()
	p := s.newPage(r, "New Request")

	if !request.CanSubmit(actor) {
		http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		p.Data = newRequestData{Types: request.Types()}
		p.Error = "Failed to read the form"
		s.render(w, r, http.StatusBadRequest, "request_new", p)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	form := newRequestForm{
		RequestType:          r.FormValue("request_type"),
		Amount:               strings.TrimSpace(r.FormValue("amount")),
		Description:          r.FormValue("description"),
		RequestedPaymentDate: r.FormValue("requested_payment_date"),
	}
	p.Data = newRequestData{Types: request.Types(), Form: form}

	amount, err := strconv.ParseFloat(form.Amount, 64)
	if err != nil {
		amount = 0
	}
	dto := request.SubmitDTO{
		RequestType:          form.RequestType,
		Amount:               amount,
		Description:          form.Description,
		RequestedPaymentDate: form.RequestedPaymentDate,
	}
	if err := dto.Validate(); err != nil {
		p.Error = errorMessage(err, request.MsgInvalidAmount)
		s.render(w, r, http.StatusUnprocessableEntity, "request_new", p)
		return
	}

	var uploads []apiclient.Upload
	if r.MultipartForm != nil {
		uploads, err = readUploads(r.MultipartForm.File["supporting_documents"])
		if err != nil {
			p.Error = "Failed to read supporting documents"
			s.render(w, r, http.StatusBadRequest, "request_new", p)
			return
		}
	}

	created, err := v.api.CreateRequest(r.Context(), apiclient.NewRequest{
		RequestType:          request.Type(dto.RequestType),
		Amount:               dto.Amount,
		Description:          strings.TrimSpace(dto.Description),
		RequestedPaymentDate: dto.RequestedPaymentDate,
		Files:                uploads,
	})
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		p.Error = apiclient.Message(err, "Failed to submit request")
		s.render(w, r, http.StatusOK, "request_new", p)
		return
	}

	logger.From(r.Context()).Info("request submitted", "request_id", created.ID)
	http.Redirect(w, r, "/requests/"+created.ID, http.StatusSeeOther)
}

func readUploads(headers []*multipart.FileHeader) ([]apiclient.Upload, error) {
	uploads := make([]apiclient.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, apiclient.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func (s *Server) requestDetail(w http.ResponseWriter, r *http.Request) {
	s.showRequest(w, r, http.StatusOK, "")
}

// showRequest fetches the request fresh and renders it with banner.
func (s *Server) showRequest(w http.ResponseWriter, r *http.Request, status int, banner string) {
	v := visitorFrom(r.Context())
	id := chi.URLParam(r, "id")

	found, err := v.api.GetRequest(r.Context(), id)
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		s.renderDetail(w, r, http.StatusOK, nil, apiclient.Message(err, "Failed to fetch request details"))
		return
	}
	s.renderDetail(w, r, status, found, banner)
}

func (s *Server) renderDetail(w http.ResponseWriter, r *http.Request, status int, req *request.PaymentRequest, banner string) {
	actor := visitorFrom(r.Context()).auth.CurrentUser()
	p := s.newPage(r, "Request Details")
	p.Error = banner
	data := detailData{Request: req}
	if req != nil {
		data.CanApprove = request.CanApprove(actor, req)
		data.CanPaycheck = request.CanGeneratePaycheck(actor, req)
		data.SelfSubmitted = req.Status == request.StatusPending && actor.Role.IsApprover() && request.IsOwner(actor, req)
	}
	p.Data = data
	s.render(w, r, status, "request_detail", p)
}

// decide pre-checks the decision with the lifecycle rules. A decision the
// rules refuse is never sent; the page re-renders with the reason and the
// request unchanged.
func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	actor := v.auth.CurrentUser()
	id := chi.URLParam(r, "id")

	if err := r.ParseForm(); err != nil {
		s.showRequest(w, r, http.StatusBadRequest, "Failed to read the form")
		return
	}
	var decision request.Decision
	switch r.PostForm.Get("action") {
	case string(request.DecisionApprove):
		decision = request.DecisionApprove
	case string(request.DecisionReject):
		decision = request.DecisionReject
	default:
		s.showRequest(w, r, http.StatusUnprocessableEntity, ErrUnknownAction.Error())
		return
	}

	current, err := v.api.GetRequest(r.Context(), id)
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		s.renderDetail(w, r, http.StatusOK, nil, apiclient.Message(err, "Failed to fetch request details"))
		return
	}
	if err := request.Authorize(actor, current); err != nil {
		logger.From(r.Context()).Warn("decision refused locally", "request_id", id, "reason", err)
		s.renderDetail(w, r, http.StatusForbidden, current, errorMessage(err, "Not enough permissions"))
		return
	}

	if _, err := v.api.DecideRequest(r.Context(), id, decision, strings.TrimSpace(r.PostForm.Get("comments"))); err != nil {
		if s.expired(w, r, err) {
			return
		}
		s.renderDetail(w, r, http.StatusOK, current, apiclient.Message(err, fmt.Sprintf("Failed to %s request", decision)))
		return
	}

	http.Redirect(w, r, localPath(r.PostForm.Get("return_to"), "/requests/"+id), http.StatusSeeOther)
}

func (s *Server) paycheck(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	actor := v.auth.CurrentUser()
	id := chi.URLParam(r, "id")

	current, err := v.api.GetRequest(r.Context(), id)
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		s.renderDetail(w, r, http.StatusOK, nil, apiclient.Message(err, "Failed to fetch request details"))
		return
	}
	if !request.CanGeneratePaycheck(actor, current) {
		s.renderDetail(w, r, http.StatusForbidden, current, msgPaycheckUnavailable)
		return
	}

	doc, err := v.api.Paycheck(r.Context(), id)
	if err != nil {
		if s.expired(w, r, err) {
			return
		}
		s.renderDetail(w, r, http.StatusOK, current, apiclient.Message(err, "Failed to generate PDF paycheck"))
		return
	}
	s.download(w, doc, PaycheckFileName(id, s.now()))
}

// PaycheckFileName is the saved name of a paycheck download.
func PaycheckFileName(id string, on time.Time) string {
	return fmt.Sprintf("paycheck_%s_%s.pdf", id, on.Format("2006-01-02"))
}

func (s *Server) download(w http.ResponseWriter, doc *apiclient.Document, filename string) {
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func sortNewestFirst(requests []request.PaymentRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}

// pendingFor keeps the requests actor may decide on now.
func pendingFor(actor *user.User, requests []request.PaymentRequest) []request.PaymentRequest {
	out := make([]request.PaymentRequest, 0, len(requests))
	for i := range requests {
		if request.CanApprove(actor, &requests[i]) {
			out = append(out, requests[i])
		}
	}
	return out
}
