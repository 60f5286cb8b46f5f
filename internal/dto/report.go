package dto

import "github.com/noah-isme/health-campaign-api/internal/models"

// ReportRequest captures POST /stats/exports payload.
type ReportRequest struct {
	Type           models.ReportType   `json:"type"`
	Format         models.ReportFormat `json:"format"`
	Date           string              `json:"date,omitempty"`
	Week           int                 `json:"week,omitempty"`
	Month          int                 `json:"month,omitempty"`
	Year           int                 `json:"year,omitempty"`
	HealthCenterID string              `json:"healthCenterId,omitempty"`
	Statuses       []string            `json:"statuses,omitempty"`
	Language       string              `json:"language,omitempty"`
}

// ReportJobResponse is returned after enqueueing an export.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
