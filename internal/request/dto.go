package request

import (
	"strings"
	"time"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/core/common/validation"
)

const (
	MsgInvalidAmount      = "Please enter a valid amount"
	MsgMissingDescription = "Please provide a description"

	maxDescriptionLength = 2000
	dateLayout           = "2006-01-02"
)

// SubmitDTO carries a new request from either a JSON body or a multipart form.
type SubmitDTO struct {
	RequestType          string     `json:"request_type"`
	Amount               float64    `json:"amount"`
	Description          string     `json:"description"`
	RequestedPaymentDate string     `json:"requested_payment_date,omitempty"`
	Documents            []Document `json:"-"`
}

// Validate runs the client-side submission checks. The first failure's
// message is what the form shows.
func (d SubmitDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("request_type", d.RequestType).
		Required("Please select a request type").
		Custom(func(value interface{}) *internal.AppError {
			if _, err := ParseType(value.(string)); err != nil {
				return internal.NewValidationFieldError("request_type", "Please select a request type", internal.ErrCodeInvalidRequestType)
			}
			return nil
		})
	v.Field("amount", d.Amount).
		Positive(MsgInvalidAmount, internal.ErrCodeInvalidAmount)
	v.Field("description", d.Description).
		Required(MsgMissingDescription).
		MaxLength(maxDescriptionLength)
	v.Field("requested_payment_date", d.RequestedPaymentDate).
		Custom(func(value interface{}) *internal.AppError {
			if _, err := ParseDate(value.(string)); err != nil {
				return internal.NewValidationFieldError("requested_payment_date", "Please enter a valid date", internal.ErrCodeInvalidDate)
			}
			return nil
		})
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ParseDate accepts an HTML date value or an RFC 3339 timestamp. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DecisionDTO is the body of PUT /api/requests/{id}/approve.
type DecisionDTO struct {
	Status   Status `json:"status"`
	Comments string `json:"comments,omitempty"`
}

func (d DecisionDTO) Decision() (Decision, error) {
	decision, err := DecisionFromStatus(d.Status)
	if err != nil {
		return "", internal.NewValidationFieldError("status", "status must be approved_final or rejected", internal.ErrCodeInvalidRequestStatus)
	}
	return decision, nil
}

// ListFilter narrows GET /api/requests.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}
