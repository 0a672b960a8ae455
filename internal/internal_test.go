package internal_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-portal/internal"
)

func TestInternal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Internal Suite")
}

var _ = Describe("Config", func() {
	var cfg *internal.Config

	BeforeEach(func() {
		cfg = &internal.Config{
			Portal:   internal.PortalConfig{APIBaseURL: "http://localhost:8080"},
			Database: internal.DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 2},
		}
		cfg.ApplyDefaults()
	})

	It("fills defaults for a sparse file", func() {
		Expect(cfg.Portal.CookieName).To(Equal("portal_sid"))
		Expect(cfg.Portal.SessionBackend).To(Equal(internal.SessionBackendMemory))
		Expect(cfg.Portal.APITimeout).To(Equal(10 * time.Second))
		Expect(cfg.Security.BCryptCost).To(Equal(12))
		Expect(cfg.Validate()).To(Succeed())
	})

	It("rejects a relative api base url", func() {
		cfg.Portal.APIBaseURL = "/api"
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("api_base_url")))
	})

	It("requires a redis address for the redis session backend", func() {
		cfg.Portal.SessionBackend = internal.SessionBackendRedis
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("redis config")))
	})

	It("joins every failing section", func() {
		cfg.Portal.SessionBackend = "cookie"
		cfg.Security.JWTSecret = "short"
		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("portal config"))
		Expect(err.Error()).To(ContainSubstring("security config"))
	})
})

var _ = Describe("AppError", func() {
	It("matches wrapped sentinels by code", func() {
		err := fmt.Errorf("approve: %w", internal.ErrSelfApproval)
		Expect(errors.Is(err, internal.ErrSelfApproval)).To(BeTrue())
		Expect(errors.Is(err, internal.ErrRequestNotFound)).To(BeFalse())

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("renders a detail body", func() {
		status, body := internal.ErrEmailRegistered.ToHTTPResponse()
		Expect(status).To(Equal(http.StatusConflict))
		resp, ok := body.(internal.Response)
		Expect(ok).To(BeTrue())
		Expect(resp.Detail).To(Equal("Email already registered"))
	})

	It("surfaces the first field message for validation failures", func() {
		err := internal.NewValidationFieldError("amount", "Please enter a valid amount", internal.ErrCodeInvalidAmount)
		Expect(err.Error()).To(Equal("Please enter a valid amount"))
	})
})

var _ = Describe("Context helpers", func() {
	It("round-trips the trace id", func() {
		ctx := internal.ContextWithTraceID(context.Background(), "trace-1")
		Expect(internal.TraceIDFromContext(ctx)).To(Equal("trace-1"))
		Expect(internal.TraceIDFromContext(context.Background())).To(BeEmpty())
	})
})
