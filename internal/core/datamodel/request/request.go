package request

import "time"

type PaymentRequest struct {
	ID                   string     `gorm:"primaryKey;type:uuid"`
	EmployeeID           string     `gorm:"column:employee_id;type:uuid;not null;index"`
	EmployeeName         string     `gorm:"column:employee_name;not null"`
	EmployeeEmail        string     `gorm:"column:employee_email;not null"`
	RequestType          string     `gorm:"column:request_type;not null"`
	Amount               float64    `gorm:"column:amount;type:numeric(14,2);not null"`
	Description          string     `gorm:"column:description;not null"`
	Status               string     `gorm:"column:status;not null;default:pending;index"`
	CurrentApproverID    *string    `gorm:"column:current_approver_id;type:uuid;index"`
	RejectionReason      *string    `gorm:"column:rejection_reason"`
	RequestedPaymentDate *time.Time `gorm:"column:requested_payment_date;type:date"`
	ActualPaymentDate    *time.Time `gorm:"column:actual_payment_date;type:date"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	ApprovalHistory []ApprovalHistory `gorm:"foreignKey:RequestID;references:ID"`
	Documents       []Document        `gorm:"foreignKey:RequestID;references:ID"`
}

func (PaymentRequest) TableName() string {
	return "payment_requests"
}

// ApprovalHistory rows are insert-only.
type ApprovalHistory struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	RequestID    string    `gorm:"column:request_id;type:uuid;not null;index"`
	ApproverID   string    `gorm:"column:approver_id;type:uuid;not null"`
	ApproverName string    `gorm:"column:approver_name;not null"`
	Status       string    `gorm:"column:status;not null"`
	Comments     string    `gorm:"column:comments"`
	ApprovedAt   time.Time `gorm:"column:approved_at;not null"`
}

func (ApprovalHistory) TableName() string {
	return "approval_history"
}

type Document struct {
	ID          string    `gorm:"primaryKey;type:char(26)"`
	RequestID   string    `gorm:"column:request_id;type:uuid;not null;index"`
	FileName    string    `gorm:"column:file_name;not null"`
	ContentType string    `gorm:"column:content_type"`
	SizeBytes   int64     `gorm:"column:size_bytes"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Document) TableName() string {
	return "request_documents"
}
