package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

// SaveStatsReportRequest creates or updates the report of a center for one period.
// Data is decoded strictly so malformed counters are rejected rather than coerced.
type SaveStatsReportRequest struct {
	HealthCenterID string           `json:"healthCenterId"`
	PeriodKind     stats.PeriodKind `json:"periodKind" validate:"required,oneof=day week month"`
	Date           string           `json:"date,omitempty"`
	Week           int              `json:"week,omitempty" validate:"gte=0,lte=53"`
	Month          int              `json:"month,omitempty" validate:"gte=0,lte=12"`
	Year           int              `json:"year,omitempty" validate:"gte=0"`
	Data           json.RawMessage  `json:"data"`
	Submit         bool             `json:"submit"`
}

// ReviewStatsReportRequest records an administrator decision.
type ReviewStatsReportRequest struct {
	Status stats.Status `json:"status" validate:"required,oneof=reviewed approved rejected"`
	Notes  *string      `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// StatsReportQuery captures GET /stats/reports filters.
type StatsReportQuery struct {
	HealthCenterID string   `form:"healthCenterId"`
	PeriodKind     string   `form:"periodKind"`
	Status         []string `form:"status"`
	From           string   `form:"from"`
	To             string   `form:"to"`
	Page           int      `form:"page"`
	PageSize       int      `form:"pageSize"`
}

// ConsolidatedQuery captures GET /stats/consolidated parameters.
type ConsolidatedQuery struct {
	Date            string   `form:"date"`
	Week            int      `form:"week"`
	Month           int      `form:"month"`
	Year            int      `form:"year"`
	Kind            string   `form:"kind"`
	Status          []string `form:"status"`
	HealthCenterID  string   `form:"healthCenterId"`
	IncludeInactive bool     `form:"includeInactive"`
}

// ConsolidatedResponse is the aggregated view of one period.
type ConsolidatedResponse struct {
	Period       stats.Range            `json:"period"`
	Label        string                 `json:"label"`
	Statuses     []stats.Status         `json:"statuses"`
	TotalCenters int                    `json:"totalCenters"`
	TotalReports int                    `json:"totalReports"`
	Consolidated stats.TopicMap         `json:"consolidated"`
	Summary      *stats.Summary         `json:"summary,omitempty"`
	Highlights   []stats.HighlightValue `json:"highlights,omitempty"`
	GeneratedAt  time.Time              `json:"generatedAt"`
}

// CoverageMonth reports how many centers reported in one month.
type CoverageMonth struct {
	Month            int     `json:"month"`
	ReportingCenters int     `json:"reportingCenters"`
	Reports          int     `json:"reports"`
	Rate             float64 `json:"rate"`
}

// CoverageResponse summarises submission coverage for a year.
type CoverageResponse struct {
	Year          int             `json:"year"`
	ActiveCenters int             `json:"activeCenters"`
	Months        []CoverageMonth `json:"months"`
}
