package request

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/core/events"
	"github.com/frahmantamala/payment-portal/internal/ids"
	"github.com/frahmantamala/payment-portal/internal/user"
)

var (
	ErrNotFound = errors.New("request not found")
	// ErrStale is returned by RecordDecision when the row is no longer pending.
	ErrStale = errors.New("request changed concurrently")
)

// Scope restricts which rows a list query may return.
type Scope struct {
	All        bool
	EmployeeID string
	ApproverID string
}

// ScopeFor returns the read scope of actor: hr and admin see everything,
// managers see their own plus those routed to or decided by them, employees
// see their own.
func ScopeFor(actor *user.User) Scope {
	switch actor.Role {
	case user.RoleHR, user.RoleAdmin:
		return Scope{All: true}
	case user.RoleManager:
		return Scope{EmployeeID: actor.ID, ApproverID: actor.ID}
	case user.RoleEmployee:
		return Scope{EmployeeID: actor.ID}
	default:
		return Scope{EmployeeID: actor.ID}
	}
}

type Repository interface {
	Create(ctx context.Context, r *PaymentRequest, docs []Document) error
	GetByID(ctx context.Context, id string) (*PaymentRequest, error)
	List(ctx context.Context, scope Scope, filter ListFilter) ([]*PaymentRequest, error)
	RecordDecision(ctx context.Context, r *PaymentRequest, entry ApprovalHistoryEntry) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Service struct {
	repo      Repository
	users     UserLookup
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, users UserLookup, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Submit(ctx context.Context, actor *user.User, dto SubmitDTO) (*PaymentRequest, error) {
	if !CanSubmit(actor) {
		s.logger.Warn("submit denied", "user_id", actor.ID, "role", actor.Role)
		return nil, ErrSubmitNotAllowed
	}
	if err := dto.Validate(); err != nil {
		s.logger.Debug("submission validation failed", "error", err, "user_id", actor.ID)
		return nil, err
	}

	requestType, _ := ParseType(dto.RequestType)
	paymentDate, _ := ParseDate(dto.RequestedPaymentDate)
	now := s.now().UTC()

	r := &PaymentRequest{
		ID:                   uuid.NewString(),
		EmployeeID:           actor.ID,
		EmployeeName:         actor.FullName,
		EmployeeEmail:        actor.Email,
		RequestType:          requestType,
		Amount:               dto.Amount,
		Description:          strings.TrimSpace(dto.Description),
		Status:               StatusPending,
		RequestedPaymentDate: paymentDate,
		ApprovalHistory:      []ApprovalHistoryEntry{},
		SupportingDocuments:  make([]string, 0, len(dto.Documents)),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if actor.ManagerID != "" {
		r.CurrentApproverID = s.resolveApprover(ctx, actor.ManagerID)
	}

	docs := make([]Document, 0, len(dto.Documents))
	for _, d := range dto.Documents {
		if d.ID == "" {
			d.ID = ids.NewAt(now)
		}
		docs = append(docs, d)
		r.SupportingDocuments = append(r.SupportingDocuments, d.FileName)
	}

	if err := s.repo.Create(ctx, r, docs); err != nil {
		s.logger.Error("failed to create request", "error", err, "user_id", actor.ID)
		return nil, err
	}

	s.logger.Info("request submitted",
		"request_id", r.ID,
		"user_id", actor.ID,
		"type", r.RequestType,
		"amount", r.Amount,
		"approver_id", r.CurrentApproverID)

	s.publish(ctx, events.NewRequestSubmittedEvent(r.ID, r.EmployeeName, r.EmployeeEmail, string(r.RequestType), r.Amount, r.CurrentApproverID))
	return r, nil
}

// resolveApprover drops a manager reference that no longer points at an approver.
func (s *Service) resolveApprover(ctx context.Context, managerID string) string {
	manager, err := s.users.GetByID(ctx, managerID)
	if err != nil {
		s.logger.Warn("manager lookup failed, request left unassigned", "manager_id", managerID, "error", err)
		return ""
	}
	if !manager.Role.IsApprover() {
		s.logger.Warn("manager no longer holds an approver role", "manager_id", managerID, "role", manager.Role)
		return ""
	}
	return manager.ID
}

func (s *Service) Get(ctx context.Context, actor *user.User, id string) (*PaymentRequest, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		s.logger.Error("failed to get request", "error", err, "request_id", id)
		return nil, err
	}
	if !CanView(actor, r) {
		s.logger.Warn("request read denied", "request_id", id, "user_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, actor *user.User, filter ListFilter) ([]*PaymentRequest, error) {
	requests, err := s.repo.List(ctx, ScopeFor(actor), filter)
	if err != nil {
		s.logger.Error("failed to list requests", "error", err, "user_id", actor.ID)
		return nil, err
	}
	return requests, nil
}

// Decide approves or rejects a pending request on behalf of actor.
func (s *Service) Decide(ctx context.Context, actor *user.User, id string, dto DecisionDTO) (*PaymentRequest, error) {
	decision, err := dto.Decision()
	if err != nil {
		return nil, err
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		return nil, err
	}

	// managers only decide requests routed to them; hr and admin decide any
	if actor.Role == user.RoleManager && !CanView(actor, r) {
		s.logger.Warn("decision denied: not the assigned approver", "request_id", id, "user_id", actor.ID)
		return nil, ErrNotApprover
	}

	entry, err := Apply(r, actor, decision, strings.TrimSpace(dto.Comments), s.now())
	if err != nil {
		s.logger.Warn("decision denied", "request_id", id, "user_id", actor.ID, "reason", err)
		return nil, err
	}

	if err := s.repo.RecordDecision(ctx, r, entry); err != nil {
		if errors.Is(err, ErrStale) {
			return nil, ErrNotPending
		}
		s.logger.Error("failed to record decision", "error", err, "request_id", id)
		return nil, err
	}

	s.logger.Info("request decided",
		"request_id", id,
		"approver_id", actor.ID,
		"status", r.Status)

	s.publish(ctx, events.NewRequestDecidedEvent(r.ID, r.EmployeeName, r.EmployeeEmail, string(r.RequestType), r.Amount, string(r.Status), actor.FullName, entry.Comments))
	return r, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "event_type", event.EventType())
	}
}
