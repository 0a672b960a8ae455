package request

import (
	"errors"
	"fmt"
)

// Status is the closed set of request statuses.
type Status string

const (
	StatusPending       Status = "pending"
	StatusApprovedL1    Status = "approved_l1"
	StatusApprovedL2    Status = "approved_l2"
	StatusApprovedFinal Status = "approved_final"
	StatusRejected      Status = "rejected"
	StatusPaid          Status = "paid"
	// StatusApproved is the legacy single-level value still present in older records.
	StatusApproved Status = "approved"
)

var ErrUnknownStatus = errors.New("unknown request status")

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApprovedL1, StatusApprovedL2, StatusApprovedFinal,
		StatusRejected, StatusPaid, StatusApproved:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether no further decision can be made.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPending:
		return false
	case StatusApprovedL1, StatusApprovedL2:
		// reserved intermediate levels; nothing transitions out of them today
		return false
	case StatusApprovedFinal, StatusApproved, StatusRejected, StatusPaid:
		return true
	default:
		return false
	}
}

// IsApproved reports whether the request reached final approval.
func (s Status) IsApproved() bool {
	switch s {
	case StatusApprovedFinal, StatusApproved:
		return true
	case StatusPending, StatusApprovedL1, StatusApprovedL2, StatusRejected, StatusPaid:
		return false
	default:
		return false
	}
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApprovedL1:
		return "Level 1 Approved"
	case StatusApprovedL2:
		return "Level 2 Approved"
	case StatusApprovedFinal, StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusPaid:
		return "Paid"
	default:
		return string(s)
	}
}

// Tone is the badge style used when rendering s.
func (s Status) Tone() string {
	switch s {
	case StatusPending:
		return "warning"
	case StatusApprovedL1, StatusApprovedL2:
		return "info"
	case StatusApprovedFinal, StatusApproved, StatusPaid:
		return "success"
	case StatusRejected:
		return "danger"
	default:
		return "neutral"
	}
}

// Decision is the action an approver takes on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status returns the terminal status a decision produces.
func (d Decision) Status() Status {
	switch d {
	case DecisionApprove:
		return StatusApprovedFinal
	case DecisionReject:
		return StatusRejected
	default:
		return ""
	}
}

// DecisionFromStatus maps the wire value of PUT /approve onto a decision.
// Only approved_final and rejected are accepted.
func DecisionFromStatus(s Status) (Decision, error) {
	switch s {
	case StatusApprovedFinal:
		return DecisionApprove, nil
	case StatusRejected:
		return DecisionReject, nil
	case StatusPending, StatusApprovedL1, StatusApprovedL2, StatusApproved, StatusPaid:
		return "", fmt.Errorf("status %q is not a decision", s)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}
