package request

import (
	"time"

	requestDatamodel "github.com/frahmantamala/payment-portal/internal/core/datamodel/request"
)

type PaymentRequest struct {
	ID                   string                 `json:"id"`
	EmployeeID           string                 `json:"employee_id"`
	EmployeeName         string                 `json:"employee_name"`
	EmployeeEmail        string                 `json:"employee_email"`
	RequestType          Type                   `json:"request_type"`
	Amount               float64                `json:"amount"`
	Description          string                 `json:"description"`
	SupportingDocuments  []string               `json:"supporting_documents"`
	Status               Status                 `json:"status"`
	ApprovalHistory      []ApprovalHistoryEntry `json:"approval_history"`
	CurrentApproverID    string                 `json:"current_approver_id,omitempty"`
	RejectionReason      string                 `json:"rejection_reason,omitempty"`
	RequestedPaymentDate *time.Time             `json:"requested_payment_date,omitempty"`
	ActualPaymentDate    *time.Time             `json:"actual_payment_date,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

type ApprovalHistoryEntry struct {
	ApproverID   string    `json:"approver_id"`
	ApproverName string    `json:"approver_name"`
	Status       Status    `json:"status"`
	Comments     string    `json:"comments,omitempty"`
	ApprovedAt   time.Time `json:"approved_at"`
}

// Document is an uploaded supporting file attached at submission.
type Document struct {
	ID          string
	FileName    string
	ContentType string
	SizeBytes   int64
}

func ToDataModel(r *PaymentRequest, docs []Document) *requestDatamodel.PaymentRequest {
	row := &requestDatamodel.PaymentRequest{
		ID:                   r.ID,
		EmployeeID:           r.EmployeeID,
		EmployeeName:         r.EmployeeName,
		EmployeeEmail:        r.EmployeeEmail,
		RequestType:          string(r.RequestType),
		Amount:               r.Amount,
		Description:          r.Description,
		Status:               string(r.Status),
		RequestedPaymentDate: r.RequestedPaymentDate,
		ActualPaymentDate:    r.ActualPaymentDate,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.CurrentApproverID != "" {
		approver := r.CurrentApproverID
		row.CurrentApproverID = &approver
	}
	if r.RejectionReason != "" {
		reason := r.RejectionReason
		row.RejectionReason = &reason
	}
	for _, d := range docs {
		row.Documents = append(row.Documents, requestDatamodel.Document{
			ID:          d.ID,
			RequestID:   r.ID,
			FileName:    d.FileName,
			ContentType: d.ContentType,
			SizeBytes:   d.SizeBytes,
		})
	}
	return row
}

func FromDataModel(row *requestDatamodel.PaymentRequest) *PaymentRequest {
	r := &PaymentRequest{
		ID:                   row.ID,
		EmployeeID:           row.EmployeeID,
		EmployeeName:         row.EmployeeName,
		EmployeeEmail:        row.EmployeeEmail,
		RequestType:          Type(row.RequestType),
		Amount:               row.Amount,
		Description:          row.Description,
		Status:               Status(row.Status),
		RequestedPaymentDate: row.RequestedPaymentDate,
		ActualPaymentDate:    row.ActualPaymentDate,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
		SupportingDocuments:  make([]string, 0, len(row.Documents)),
		ApprovalHistory:      make([]ApprovalHistoryEntry, 0, len(row.ApprovalHistory)),
	}
	if row.CurrentApproverID != nil {
		r.CurrentApproverID = *row.CurrentApproverID
	}
	if row.RejectionReason != nil {
		r.RejectionReason = *row.RejectionReason
	}
	for _, d := range row.Documents {
		r.SupportingDocuments = append(r.SupportingDocuments, d.FileName)
	}
	for _, h := range row.ApprovalHistory {
		r.ApprovalHistory = append(r.ApprovalHistory, ApprovalHistoryEntry{
			ApproverID:   h.ApproverID,
			ApproverName: h.ApproverName,
			Status:       Status(h.Status),
			Comments:     h.Comments,
			ApprovedAt:   h.ApprovedAt,
		})
	}
	return r
}

func FromDataModelSlice(rows []*requestDatamodel.PaymentRequest) []*PaymentRequest {
	result := make([]*PaymentRequest, len(rows))
	for i, row := range rows {
		result[i] = FromDataModel(row)
	}
	return result
}
