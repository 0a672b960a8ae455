package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	requestDatamodel "github.com/frahmantamala/payment-portal/internal/core/datamodel/request"
	"github.com/frahmantamala/payment-portal/internal/request"
)

// RequestRepository implements request.Repository using GORM
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(ctx context.Context, req *request.PaymentRequest, docs []request.Document) error {
	row := request.ToDataModel(req, docs)
	// documents are inserted through the association
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	req.CreatedAt = row.CreatedAt
	req.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*request.PaymentRequest, error) {
	var row requestDatamodel.PaymentRequest
	err := r.withAssociations(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, request.ErrNotFound
		}
		return nil, err
	}
	return request.FromDataModel(&row), nil
}

func (r *RequestRepository) List(ctx context.Context, scope request.Scope, filter request.ListFilter) ([]*request.PaymentRequest, error) {
	query := r.withAssociations(r.db.WithContext(ctx).Model(&requestDatamodel.PaymentRequest{}))

	if !scope.All {
		switch {
		case scope.ApproverID != "":
			query = query.Where(
				"employee_id = ? OR current_approver_id = ? OR id IN (?)",
				scope.EmployeeID,
				scope.ApproverID,
				r.db.Model(&requestDatamodel.ApprovalHistory{}).Select("request_id").Where("approver_id = ?", scope.ApproverID),
			)
		default:
			query = query.Where("employee_id = ?", scope.EmployeeID)
		}
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []*requestDatamodel.PaymentRequest
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return request.FromDataModelSlice(rows), nil
}

// RecordDecision moves a pending row to the decided status and appends the
// history entry in one transaction. It returns request.ErrStale when the row
// left pending in the meantime.
func (r *RequestRepository) RecordDecision(ctx context.Context, req *request.PaymentRequest, entry request.ApprovalHistoryEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     string(req.Status),
			"updated_at": req.UpdatedAt,
		}
		if req.RejectionReason != "" {
			updates["rejection_reason"] = req.RejectionReason
		}
		if req.CurrentApproverID == "" {
			updates["current_approver_id"] = nil
		}

		result := tx.Model(&requestDatamodel.PaymentRequest{}).
			Where("id = ? AND status = ?", req.ID, string(request.StatusPending)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return request.ErrStale
		}

		history := &requestDatamodel.ApprovalHistory{
			RequestID:    req.ID,
			ApproverID:   entry.ApproverID,
			ApproverName: entry.ApproverName,
			Status:       string(entry.Status),
			Comments:     entry.Comments,
			ApprovedAt:   entry.ApprovedAt,
		}
		return tx.Create(history).Error
	})
}

// UnassignApprover clears current_approver_id wherever it points at
// approverID and returns the number of rows changed.
func (r *RequestRepository) UnassignApprover(ctx context.Context, approverID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&requestDatamodel.PaymentRequest{}).
		Where("current_approver_id = ?", approverID).
		Updates(map[string]interface{}{
			"current_approver_id": nil,
			"updated_at":          time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *RequestRepository) withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ApprovalHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("approved_at ASC, id ASC")
		}).
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})
}
