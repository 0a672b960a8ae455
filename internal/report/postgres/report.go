package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/payment-portal/internal/report"
)

const bucketsQuery = `
SELECT status,
       request_type,
       date_trunc('month', created_at) AS month,
       COUNT(*) AS n,
       COALESCE(SUM(amount), 0) AS total
  FROM payment_requests`

const bucketsGroupBy = `
 GROUP BY status, request_type, month
 ORDER BY month`

// ReportRepository aggregates payment requests with plain SQL over sqlx.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Buckets returns aggregated rows, restricted to employeeID when non-empty.
func (r *ReportRepository) Buckets(ctx context.Context, employeeID string) ([]report.Bucket, error) {
	var (
		rows []report.Bucket
		err  error
	)
	if employeeID == "" {
		err = r.db.SelectContext(ctx, &rows, bucketsQuery+bucketsGroupBy)
	} else {
		err = r.db.SelectContext(ctx, &rows, bucketsQuery+"\n WHERE employee_id = $1"+bucketsGroupBy, employeeID)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}
