package request_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/core/events"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/user"
)

type mockRequestRepository struct {
	requests  map[string]*request.PaymentRequest
	docs      map[string][]request.Document
	lastScope request.Scope
	createErr error
	decideErr error
	decisions int
}

func newMockRequestRepository(requests ...*request.PaymentRequest) *mockRequestRepository {
	m := &mockRequestRepository{
		requests: map[string]*request.PaymentRequest{},
		docs:     map[string][]request.Document{},
	}
	for _, r := range requests {
		m.requests[r.ID] = r
	}
	return m
}

func (m *mockRequestRepository) Create(_ context.Context, r *request.PaymentRequest, docs []request.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *r
	m.requests[r.ID] = &cp
	m.docs[r.ID] = docs
	return nil
}

func (m *mockRequestRepository) GetByID(_ context.Context, id string) (*request.PaymentRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := *r
	cp.ApprovalHistory = append([]request.ApprovalHistoryEntry{}, r.ApprovalHistory...)
	return &cp, nil
}

func (m *mockRequestRepository) List(_ context.Context, scope request.Scope, _ request.ListFilter) ([]*request.PaymentRequest, error) {
	m.lastScope = scope
	out := []*request.PaymentRequest{}
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRequestRepository) RecordDecision(_ context.Context, r *request.PaymentRequest, entry request.ApprovalHistoryEntry) error {
	if m.decideErr != nil {
		return m.decideErr
	}
	stored := m.requests[r.ID]
	if stored.Status != request.StatusPending {
		return request.ErrStale
	}
	m.decisions++
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

type mockUserLookup struct {
	users map[string]*user.User
}

func (m *mockUserLookup) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

var _ = Describe("RequestService", func() {
	var (
		repo      *mockRequestRepository
		publisher *recordingPublisher
		service   *request.Service
		ctx       context.Context
		now       = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

		alice = &user.User{ID: "emp-1", Email: "alice@co.com", FullName: "Alice", Role: user.RoleEmployee, ManagerID: "mgr-1"}
		bob   = &user.User{ID: "mgr-1", Email: "bob@co.com", FullName: "Bob", Role: user.RoleManager}
		hana  = &user.User{ID: "hr-1", Email: "hana@co.com", FullName: "Hana HR", Role: user.RoleHR}
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockRequestRepository()
		publisher = &recordingPublisher{}
		users := &mockUserLookup{users: map[string]*user.User{bob.ID: bob, alice.ID: alice, hana.ID: hana}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = request.NewService(repo, users, publisher, logger).WithClock(func() time.Time { return now })
	})

	Describe("Submit", func() {
		validDTO := func() request.SubmitDTO {
			return request.SubmitDTO{
				RequestType: "bonus",
				Amount:      500,
				Description: "Q3 performance bonus",
			}
		}

		It("creates a pending request for the submitting employee", func() {
			// Given an employee with a manager
			// When they submit a bonus request
			r, err := service.Submit(ctx, alice, validDTO())

			// Then the request is pending with no history
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(request.StatusPending))
			Expect(r.ApprovalHistory).To(BeEmpty())
			Expect(r.EmployeeEmail).To(Equal("alice@co.com"))
			Expect(r.EmployeeName).To(Equal("Alice"))
			Expect(r.CurrentApproverID).To(Equal("mgr-1"))
			Expect(r.CreatedAt).To(Equal(now))

			Expect(repo.requests).To(HaveKey(r.ID))
			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventType()).To(Equal(events.EventTypeRequestSubmitted))
		})

		It("stores uploaded documents with generated ids", func() {
			dto := validDTO()
			dto.Documents = []request.Document{{FileName: "receipt.pdf", ContentType: "application/pdf", SizeBytes: 10}}

			r, err := service.Submit(ctx, alice, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.SupportingDocuments).To(ConsistOf("receipt.pdf"))
			Expect(repo.docs[r.ID]).To(HaveLen(1))
			Expect(repo.docs[r.ID][0].ID).To(HaveLen(26))
		})

		It("leaves the request unassigned when the manager is not an approver", func() {
			carl := &user.User{ID: "emp-2", Email: "carl@co.com", FullName: "Carl", Role: user.RoleEmployee, ManagerID: "emp-1"}
			r, err := service.Submit(ctx, carl, validDTO())
			Expect(err).NotTo(HaveOccurred())
			Expect(r.CurrentApproverID).To(BeEmpty())
		})

		DescribeTable("rejects invalid input with the form message",
			func(mutate func(*request.SubmitDTO), message string) {
				dto := validDTO()
				mutate(&dto)
				_, err := service.Submit(ctx, alice, dto)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(Equal(message))
				Expect(repo.requests).To(BeEmpty())
			},
			Entry("zero amount", func(d *request.SubmitDTO) { d.Amount = 0 }, request.MsgInvalidAmount),
			Entry("negative amount", func(d *request.SubmitDTO) { d.Amount = -5 }, request.MsgInvalidAmount),
			Entry("blank description", func(d *request.SubmitDTO) { d.Description = "   " }, request.MsgMissingDescription),
			Entry("unknown type", func(d *request.SubmitDTO) { d.RequestType = "gift" }, "Please select a request type"),
		)

		It("refuses submissions from hr", func() {
			_, err := service.Submit(ctx, hana, validDTO())
			Expect(err).To(MatchError(request.ErrSubmitNotAllowed))
		})

		It("surfaces repository failures", func() {
			repo.createErr = errors.New("db down")
			_, err := service.Submit(ctx, alice, validDTO())
			Expect(err).To(MatchError("db down"))
			Expect(publisher.events).To(BeEmpty())
		})
	})

	Describe("Get and List", func() {
		BeforeEach(func() {
			r := pendingRequest("alice@co.com")
			r.CurrentApproverID = bob.ID
			repo.requests[r.ID] = r
		})

		It("returns the request to its owner", func() {
			r, err := service.Get(ctx, alice, "req-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.ID).To(Equal("req-1"))
		})

		It("hides requests outside the caller's scope", func() {
			stranger := &user.User{ID: "emp-9", Email: "x@co.com", Role: user.RoleEmployee}
			_, err := service.Get(ctx, stranger, "req-1")
			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
		})

		It("maps unknown ids to not found", func() {
			_, err := service.Get(ctx, alice, "missing")
			Expect(errors.Is(err, internal.ErrRequestNotFound)).To(BeTrue())
		})

		It("scopes the list by role", func() {
			_, err := service.List(ctx, bob, request.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastScope).To(Equal(request.Scope{EmployeeID: bob.ID, ApproverID: bob.ID}))

			_, err = service.List(ctx, hana, request.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastScope.All).To(BeTrue())
		})
	})

	Describe("Decide", func() {
		BeforeEach(func() {
			r := pendingRequest("alice@co.com")
			r.CurrentApproverID = bob.ID
			repo.requests[r.ID] = r
		})

		It("lets hr approve with a comment", func() {
			// Given a pending request
			// When hr approves it with a comment
			r, err := service.Decide(ctx, hana, "req-1", request.DecisionDTO{Status: request.StatusApprovedFinal, Comments: "Approved per policy"})

			// Then it is final with one history entry
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(request.StatusApprovedFinal))
			Expect(r.ApprovalHistory).To(HaveLen(1))
			Expect(r.ApprovalHistory[0].Comments).To(Equal("Approved per policy"))
			Expect(r.ApprovalHistory[0].ApproverName).To(Equal("Hana HR"))
			Expect(repo.decisions).To(Equal(1))
			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventType()).To(Equal(events.EventTypeRequestDecided))
		})

		It("refuses a manager approving their own request", func() {
			own := pendingRequest("bob@co.com")
			own.ID = "req-2"
			own.EmployeeID = bob.ID
			repo.requests[own.ID] = own

			_, err := service.Decide(ctx, bob, "req-2", request.DecisionDTO{Status: request.StatusApprovedFinal})
			Expect(errors.Is(err, request.ErrSelfApproval)).To(BeTrue())
			Expect(repo.requests["req-2"].Status).To(Equal(request.StatusPending))
			Expect(repo.decisions).To(BeZero())
		})

		It("refuses managers deciding requests routed elsewhere", func() {
			other := &user.User{ID: "mgr-2", Email: "mia@co.com", FullName: "Mia", Role: user.RoleManager}
			_, err := service.Decide(ctx, other, "req-1", request.DecisionDTO{Status: request.StatusRejected})
			Expect(errors.Is(err, request.ErrNotApprover)).To(BeTrue())
		})

		It("rejects a second decision", func() {
			_, err := service.Decide(ctx, hana, "req-1", request.DecisionDTO{Status: request.StatusRejected, Comments: "No"})
			Expect(err).NotTo(HaveOccurred())

			admin := &user.User{ID: "adm-1", Email: "ada@co.com", FullName: "Ada", Role: user.RoleAdmin}
			_, err = service.Decide(ctx, admin, "req-1", request.DecisionDTO{Status: request.StatusApprovedFinal})
			Expect(errors.Is(err, request.ErrNotPending)).To(BeTrue())
		})

		It("maps a concurrent decision to not pending", func() {
			repo.decideErr = request.ErrStale
			_, err := service.Decide(ctx, hana, "req-1", request.DecisionDTO{Status: request.StatusApprovedFinal})
			Expect(errors.Is(err, request.ErrNotPending)).To(BeTrue())
		})

		It("validates the decision status", func() {
			_, err := service.Decide(ctx, hana, "req-1", request.DecisionDTO{Status: request.StatusPending})
			Expect(err).To(HaveOccurred())
			Expect(repo.decisions).To(BeZero())
		})
	})
})
