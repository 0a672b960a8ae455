package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRequestSubmitted = "request.submitted"
	EventTypeRequestDecided   = "request.decided"
)

type RequestSubmittedEvent struct {
	BaseEvent
	RequestID     string  `json:"request_id"`
	EmployeeName  string  `json:"employee_name"`
	EmployeeEmail string  `json:"employee_email"`
	RequestType   string  `json:"request_type"`
	Amount        float64 `json:"amount"`
	ApproverID    string  `json:"approver_id,omitempty"`
}

func NewRequestSubmittedEvent(requestID, employeeName, employeeEmail, requestType string, amount float64, approverID string) *RequestSubmittedEvent {
	return &RequestSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRequestSubmitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id":     requestID,
				"employee_email": employeeEmail,
				"request_type":   requestType,
				"amount":         amount,
				"approver_id":    approverID,
			},
		},
		RequestID:     requestID,
		EmployeeName:  employeeName,
		EmployeeEmail: employeeEmail,
		RequestType:   requestType,
		Amount:        amount,
		ApproverID:    approverID,
	}
}

type RequestDecidedEvent struct {
	BaseEvent
	RequestID     string  `json:"request_id"`
	EmployeeName  string  `json:"employee_name"`
	EmployeeEmail string  `json:"employee_email"`
	RequestType   string  `json:"request_type"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	ApproverName  string  `json:"approver_name"`
	Comments      string  `json:"comments,omitempty"`
}

func NewRequestDecidedEvent(requestID, employeeName, employeeEmail, requestType string, amount float64, status, approverName, comments string) *RequestDecidedEvent {
	return &RequestDecidedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRequestDecided,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id":     requestID,
				"employee_email": employeeEmail,
				"status":         status,
				"approver_name":  approverName,
			},
		},
		RequestID:     requestID,
		EmployeeName:  employeeName,
		EmployeeEmail: employeeEmail,
		RequestType:   requestType,
		Amount:        amount,
		Status:        status,
		ApproverName:  approverName,
		Comments:      comments,
	}
}
