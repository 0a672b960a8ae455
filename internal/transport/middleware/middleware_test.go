package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/frahmantamala/payment-portal/internal"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("Middleware", func() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	Describe("RequestID", func() {
		It("keeps an inbound trace id and exposes it to handlers", func() {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = internal.TraceIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(TraceHeader, "trace-1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Expect(seen).To(Equal("trace-1"))
			Expect(rec.Header().Get(TraceHeader)).To(Equal("trace-1"))
		})

		It("generates one when missing", func() {
			rec := httptest.NewRecorder()
			RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(rec.Header().Get(TraceHeader)).NotTo(BeEmpty())
		})
	})

	Describe("RecoveryMiddleware", func() {
		It("turns a panic into a 500 with a detail body", func() {
			h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(ContainSubstring(`"detail":"Internal server error"`))
		})
	})

	Describe("CORS", func() {
		It("echoes allowed origins and answers preflight", func() {
			h := CORS("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(http.MethodOptions, "/api/requests", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
		})

		It("ignores other origins", func() {
			h := CORS("http://localhost:3000")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", "http://evil.example")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})

	Describe("LoggingMiddleware", func() {
		It("passes the request body through untouched", func() {
			var body string
			h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.ParseForm()).To(Succeed())
				body = r.PostForm.Get("password")
				w.WriteHeader(http.StatusCreated)
			}))

			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=a&password=secret"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Expect(body).To(Equal("secret"))
			Expect(rec.Code).To(Equal(http.StatusCreated))
		})

		It("masks sensitive JSON fields", func() {
			Expect(filterSensitiveBody([]byte(`{"email":"a@co.com","password":"x"}`))).
				To(And(ContainSubstring(`"password":"[FILTERED]"`), ContainSubstring(`"email":"a@co.com"`)))
		})

		It("masks sensitive form fields", func() {
			out := filterFormBody([]byte("username=eve%40co.com&password=hunter2"))

			Expect(out).To(ContainSubstring("username=eve%40co.com"))
			Expect(out).NotTo(ContainSubstring("hunter2"))
		})

		It("never logs the session cookie", func() {
			h := http.Header{}
			h.Set("Cookie", "portal_sid=abc")
			h.Set("Authorization", "Bearer t")
			h.Set("Accept", "text/html")

			out := filterSensitiveHeaders(h)

			Expect(out["Cookie"]).To(Equal("[FILTERED]"))
			Expect(out["Authorization"]).To(Equal("[FILTERED]"))
			Expect(out["Accept"]).To(Equal("text/html"))
		})
	})

	Describe("Instrument", func() {
		It("serves the wrapped route", func() {
			r := chi.NewRouter()
			r.Use(Instrument("test"))
			r.Get("/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/42", nil))

			Expect(rec.Code).To(Equal(http.StatusAccepted))
		})
	})
})
