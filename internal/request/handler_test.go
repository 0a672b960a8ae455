package request_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/user"
)

var _ = ginkgo.Describe("RequestHandler", func() {
	var (
		repo    *mockRequestRepository
		handler *request.Handler
		actor   *user.User
		router  chi.Router
	)

	ginkgo.BeforeEach(func() {
		repo = newMockRequestRepository()
		users := &mockUserLookup{users: map[string]*user.User{
			"mgr-1": {ID: "mgr-1", Email: "bob@co.com", FullName: "Bob", Role: user.RoleManager},
		}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = request.NewHandler(request.NewService(repo, users, nil, logger))
		actor = &user.User{ID: "emp-1", Email: "alice@co.com", FullName: "Alice", Role: user.RoleEmployee, ManagerID: "mgr-1"}

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if actor != nil {
					r = r.WithContext(user.NewContext(r.Context(), actor))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Post("/api/requests", handler.CreateRequest)
		router.Get("/api/requests", handler.ListRequests)
		router.Get("/api/requests/{id}", handler.GetRequest)
		router.Put("/api/requests/{id}/approve", handler.DecideRequest)
		router.Get("/api/request-types", handler.ListTypes)
	})

	ginkgo.Describe("CreateRequest", func() {
		ginkgo.It("accepts a JSON body", func() {
			// Given an authenticated employee
			body := `{"request_type":"bonus","amount":500,"description":"Q3 performance bonus"}`
			req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			// When the request is posted
			router.ServeHTTP(rec, req)

			// Then the created record comes back pending
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
			var created request.PaymentRequest
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(gomega.Succeed())
			gomega.Expect(created.Status).To(gomega.Equal(request.StatusPending))
			gomega.Expect(created.EmployeeEmail).To(gomega.Equal("alice@co.com"))
		})

		ginkgo.It("accepts a multipart form with documents", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			gomega.Expect(mw.WriteField("request_type", "reimbursement")).To(gomega.Succeed())
			gomega.Expect(mw.WriteField("amount", "42.50")).To(gomega.Succeed())
			gomega.Expect(mw.WriteField("description", "Taxi")).To(gomega.Succeed())
			gomega.Expect(mw.WriteField("requested_payment_date", "2026-04-01")).To(gomega.Succeed())
			part, err := mw.CreateFormFile("supporting_documents", "receipt.pdf")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			_, _ = part.Write([]byte("%PDF-1.4"))
			gomega.Expect(mw.Close()).To(gomega.Succeed())

			req := httptest.NewRequest(http.MethodPost, "/api/requests", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
			var created request.PaymentRequest
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(gomega.Succeed())
			gomega.Expect(created.Amount).To(gomega.Equal(42.5))
			gomega.Expect(created.SupportingDocuments).To(gomega.ConsistOf("receipt.pdf"))
			gomega.Expect(created.RequestedPaymentDate).NotTo(gomega.BeNil())
		})

		ginkgo.It("returns the validation message as detail", func() {
			body := `{"request_type":"bonus","amount":0,"description":"x"}`
			req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			var resp internal.Response
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.Detail).To(gomega.Equal(request.MsgInvalidAmount))
		})

		ginkgo.It("requires an authenticated user", func() {
			actor = nil
			req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("DecideRequest", func() {
		ginkgo.BeforeEach(func() {
			r := pendingRequest("bob@co.com")
			r.EmployeeID = "mgr-1"
			repo.requests[r.ID] = r
		})

		ginkgo.It("refuses self-approval with 403", func() {
			actor = &user.User{ID: "mgr-1", Email: "bob@co.com", FullName: "Bob", Role: user.RoleManager}
			req := httptest.NewRequest(http.MethodPut, "/api/requests/req-1/approve", strings.NewReader(`{"status":"approved_final"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			var resp internal.Response
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.Detail).To(gomega.Equal("You cannot approve your own request"))
			gomega.Expect(repo.requests["req-1"].Status).To(gomega.Equal(request.StatusPending))
		})

		ginkgo.It("lets hr reject with a reason", func() {
			actor = &user.User{ID: "hr-1", Email: "hana@co.com", FullName: "Hana HR", Role: user.RoleHR}
			req := httptest.NewRequest(http.MethodPut, "/api/requests/req-1/approve", strings.NewReader(`{"status":"rejected","comments":"Over budget"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			var updated request.PaymentRequest
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &updated)).To(gomega.Succeed())
			gomega.Expect(updated.Status).To(gomega.Equal(request.StatusRejected))
			gomega.Expect(updated.RejectionReason).To(gomega.Equal("Over budget"))
		})

		ginkgo.It("returns 404 for an unknown request", func() {
			actor = &user.User{ID: "hr-1", Email: "hana@co.com", Role: user.RoleHR}
			req := httptest.NewRequest(http.MethodPut, "/api/requests/nope/approve", strings.NewReader(`{"status":"rejected"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNotFound))
		})
	})

	ginkgo.Describe("ListRequests", func() {
		ginkgo.It("rejects an unknown status filter", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/requests?status=bogus", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("lists with the caller's scope", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/requests?limit=10", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(repo.lastScope).To(gomega.Equal(request.Scope{EmployeeID: "emp-1"}))
		})
	})

	ginkgo.It("serves the request type catalog", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/request-types", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var types []request.TypeInfo
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &types)).To(gomega.Succeed())
		gomega.Expect(types).To(gomega.HaveLen(5))
	})
})
