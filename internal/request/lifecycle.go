package request

import (
	"strings"
	"time"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/user"
)

var (
	ErrSubmitNotAllowed = internal.NewForbiddenError("Only employees and managers can submit requests", internal.ErrCodeSubmitNotAllowed)
	ErrNotApprover      = internal.NewForbiddenError("You are not authorized to approve this request", internal.ErrCodeUnauthorizedAccess)
	ErrNotPending       = internal.ErrInvalidRequestStatus
	ErrSelfApproval     = internal.ErrSelfApproval
)

// IsOwner reports whether actor submitted r. Ownership follows the employee email.
func IsOwner(actor *user.User, r *PaymentRequest) bool {
	if actor == nil || r == nil {
		return false
	}
	return strings.EqualFold(actor.Email, r.EmployeeEmail)
}

// CanSubmit reports whether actor may create new requests.
func CanSubmit(actor *user.User) bool {
	return actor != nil && actor.Role.In(user.RoleEmployee, user.RoleManager)
}

// Authorize returns nil when actor may approve or reject r, otherwise the
// reason it may not.
func Authorize(actor *user.User, r *PaymentRequest) error {
	if actor == nil || r == nil {
		return ErrNotApprover
	}
	if r.Status != StatusPending {
		return ErrNotPending
	}
	if !actor.Role.IsApprover() {
		return ErrNotApprover
	}
	if IsOwner(actor, r) {
		return ErrSelfApproval
	}
	return nil
}

// CanApprove gates both the approve and the reject action.
func CanApprove(actor *user.User, r *PaymentRequest) bool {
	return Authorize(actor, r) == nil
}

// CanGeneratePaycheck reports whether the paycheck download is offered.
func CanGeneratePaycheck(actor *user.User, r *PaymentRequest) bool {
	if actor == nil || r == nil {
		return false
	}
	if !r.Status.IsApproved() {
		return false
	}
	return IsOwner(actor, r) || actor.Role.IsApprover()
}

// CanView mirrors the API's read scope: owner, assigned or past approver, or hr/admin.
func CanView(actor *user.User, r *PaymentRequest) bool {
	if actor == nil || r == nil {
		return false
	}
	if actor.Role.SeesAllRequests() {
		return true
	}
	if r.EmployeeID == actor.ID || IsOwner(actor, r) {
		return true
	}
	if r.CurrentApproverID != "" && r.CurrentApproverID == actor.ID {
		return true
	}
	for _, h := range r.ApprovalHistory {
		if h.ApproverID == actor.ID {
			return true
		}
	}
	return false
}

// Apply records actor's decision on r. It appends exactly one history entry
// and moves r to the decision's terminal status. r is left untouched when the
// decision is not authorized.
func Apply(r *PaymentRequest, actor *user.User, d Decision, comments string, now time.Time) (ApprovalHistoryEntry, error) {
	if err := Authorize(actor, r); err != nil {
		return ApprovalHistoryEntry{}, err
	}
	next := d.Status()
	if next == "" {
		return ApprovalHistoryEntry{}, internal.NewValidationError("unknown decision", internal.ErrCodeInvalidRequestStatus)
	}

	entry := ApprovalHistoryEntry{
		ApproverID:   actor.ID,
		ApproverName: actor.FullName,
		Status:       next,
		Comments:     comments,
		ApprovedAt:   now.UTC(),
	}

	r.Status = next
	r.UpdatedAt = entry.ApprovedAt
	r.ApprovalHistory = append(r.ApprovalHistory, entry)
	if d == DecisionReject {
		r.RejectionReason = comments
		r.CurrentApproverID = ""
	}
	return entry, nil
}
