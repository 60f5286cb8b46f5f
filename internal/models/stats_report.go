package models

import (
	"time"

	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

// StatsReport is one health center's submission for one period.
type StatsReport struct {
	ID             string           `db:"id" json:"id"`
	HealthCenterID string           `db:"health_center_id" json:"health_center_id"`
	PeriodKind     stats.PeriodKind `db:"period_kind" json:"period_kind"`
	PeriodStart    time.Time        `db:"period_start" json:"period_start"`
	Week           *int             `db:"week" json:"week,omitempty"`
	Month          *int             `db:"month" json:"month,omitempty"`
	Year           int              `db:"year" json:"year"`
	Data           stats.TopicMap   `db:"data" json:"data"`
	Status         stats.Status     `db:"status" json:"status"`
	CreatedBy      string           `db:"created_by" json:"created_by"`
	SubmittedAt    *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedBy     *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes    *string          `db:"review_notes" json:"review_notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// ToStatsReport projects the row onto the aggregation input type.
func (r StatsReport) ToStatsReport() stats.Report {
	return stats.Report{
		ID:             r.ID,
		HealthCenterID: r.HealthCenterID,
		PeriodStart:    r.PeriodStart,
		Status:         r.Status,
		Data:           r.Data,
	}
}

// StatsReportFilter narrows report listings.
type StatsReportFilter struct {
	HealthCenterID string
	PeriodKind     stats.PeriodKind
	Statuses       []stats.Status
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}

// CenterCoverage counts reporting centers for one month.
type CenterCoverage struct {
	Month            int `db:"month" json:"month"`
	ReportingCenters int `db:"reporting_centers" json:"reporting_centers"`
	Reports          int `db:"reports" json:"reports"`
}
