package report

import (
	"math"
	"strings"
	"time"

	"github.com/frahmantamala/payment-portal/internal/request"
)

// Analytics is the body of GET /api/reports/analytics.
type Analytics struct {
	Summary       Summary          `json:"summary"`
	RequestTypes  map[string]int64 `json:"request_types"`
	MonthlyTrends map[string]int64 `json:"monthly_trends"`
	Amounts       Amounts          `json:"amounts"`
}

type Summary struct {
	TotalRequests int64   `json:"total_requests"`
	ApprovedCount int64   `json:"approved_count"`
	PendingCount  int64   `json:"pending_count"`
	RejectedCount int64   `json:"rejected_count"`
	ApprovalRate  float64 `json:"approval_rate"`
}

type Amounts struct {
	TotalRequested float64 `json:"total_requested"`
	TotalApproved  float64 `json:"total_approved"`
	AverageRequest float64 `json:"average_request"`
}

// Bucket is one aggregated row: requests sharing status, type and month.
type Bucket struct {
	Status      string    `db:"status"`
	RequestType string    `db:"request_type"`
	Month       time.Time `db:"month"`
	Count       int64     `db:"n"`
	Total       float64   `db:"total"`
}

// Build folds buckets into the analytics payload.
func Build(buckets []Bucket) *Analytics {
	a := &Analytics{
		RequestTypes:  map[string]int64{},
		MonthlyTrends: map[string]int64{},
	}

	for _, b := range buckets {
		a.Summary.TotalRequests += b.Count
		a.Amounts.TotalRequested += b.Total

		status := request.Status(b.Status)
		switch {
		case status.IsApproved():
			a.Summary.ApprovedCount += b.Count
			a.Amounts.TotalApproved += b.Total
		case status == request.StatusPending:
			a.Summary.PendingCount += b.Count
		case status == request.StatusRejected:
			a.Summary.RejectedCount += b.Count
		}

		a.RequestTypes[typeLabel(b.RequestType)] += b.Count
		if !b.Month.IsZero() {
			a.MonthlyTrends[b.Month.UTC().Format("January 2006")] += b.Count
		}
	}

	if a.Summary.TotalRequests > 0 {
		a.Summary.ApprovalRate = round(float64(a.Summary.ApprovedCount)/float64(a.Summary.TotalRequests)*100, 1)
		a.Amounts.AverageRequest = round(a.Amounts.TotalRequested/float64(a.Summary.TotalRequests), 2)
	}
	a.Amounts.TotalRequested = round(a.Amounts.TotalRequested, 2)
	a.Amounts.TotalApproved = round(a.Amounts.TotalApproved, 2)
	return a
}

func typeLabel(raw string) string {
	if t, err := request.ParseType(raw); err == nil {
		return t.Label()
	}
	if raw == "" {
		return "Unknown"
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
