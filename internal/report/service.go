package report

import (
	"context"
	"log/slog"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/user"
)

type Repository interface {
	Buckets(ctx context.Context, employeeID string) ([]Bucket, error)
}

// RequestReader is the read side of the request service.
type RequestReader interface {
	Get(ctx context.Context, actor *user.User, id string) (*request.PaymentRequest, error)
}

type Service struct {
	repo     Repository
	requests RequestReader
	logger   *slog.Logger
}

func NewService(repo Repository, requests RequestReader, logger *slog.Logger) *Service {
	return &Service{repo: repo, requests: requests, logger: logger}
}

// Analytics aggregates every request for approvers and only their own for employees.
func (s *Service) Analytics(ctx context.Context, actor *user.User) (*Analytics, error) {
	employeeID := ""
	if !actor.Role.IsApprover() {
		employeeID = actor.ID
	}

	buckets, err := s.repo.Buckets(ctx, employeeID)
	if err != nil {
		s.logger.Error("failed to aggregate requests", "error", err, "user_id", actor.ID)
		return nil, err
	}
	return Build(buckets), nil
}

// Summary checks access to the PDF summary report. Rendering lives in an
// external document service.
func (s *Service) Summary(ctx context.Context, actor *user.User) error {
	if !actor.Role.IsApprover() {
		return internal.NewForbiddenError("Not authorized to generate summary reports", internal.ErrCodeUnauthorizedAccess)
	}
	s.logger.Warn("summary report requested but no document service is configured", "user_id", actor.ID)
	return internal.ErrDocumentUnavailable
}

// Paycheck checks access to the paycheck PDF of request id.
func (s *Service) Paycheck(ctx context.Context, actor *user.User, id string) error {
	r, err := s.requests.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !request.CanGeneratePaycheck(actor, r) {
		return internal.NewForbiddenError("Paycheck is only available for approved requests", internal.ErrCodeUnauthorizedAccess)
	}
	s.logger.Warn("paycheck requested but no document service is configured", "request_id", id, "user_id", actor.ID)
	return internal.ErrDocumentUnavailable
}
