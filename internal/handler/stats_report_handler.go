package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

type statsReportService interface {
	Save(ctx context.Context, actor service.Actor, req dto.SaveStatsReportRequest) (*models.StatsReport, error)
	Submit(ctx context.Context, actor service.Actor, id string) (*models.StatsReport, error)
	Review(ctx context.Context, actor service.Actor, id string, req dto.ReviewStatsReportRequest) (*models.StatsReport, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.StatsReport, error)
	List(ctx context.Context, actor service.Actor, query dto.StatsReportQuery) ([]models.StatsReport, *models.Pagination, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
}

// StatsReportHandler exposes per-center statistics reports.
type StatsReportHandler struct {
	service statsReportService
}

// NewStatsReportHandler constructs the handler.
func NewStatsReportHandler(svc statsReportService) *StatsReportHandler {
	return &StatsReportHandler{service: svc}
}

// Save godoc
// @Summary Save statistics report
// @Description Creates or replaces the report of a health center for one period
// @Tags Statistics
// @Accept json
// @Produce json
// @Param payload body dto.SaveStatsReportRequest true "Report payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stats/reports [put]
func (h *StatsReportHandler) Save(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveStatsReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	report, err := h.service.Save(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Submit godoc
// @Summary Submit statistics report
// @Tags Statistics
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stats/reports/{id}/submit [post]
func (h *StatsReportHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Review godoc
// @Summary Review statistics report
// @Tags Statistics
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ReviewStatsReportRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /stats/reports/{id}/review [post]
func (h *StatsReportHandler) Review(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReviewStatsReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	report, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Get godoc
// @Summary Get statistics report
// @Tags Statistics
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stats/reports/{id} [get]
func (h *StatsReportHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// List godoc
// @Summary List statistics reports
// @Tags Statistics
// @Produce json
// @Param healthCenterId query string false "Health center filter"
// @Param periodKind query string false "day, week or month"
// @Param status query []string false "Status filter"
// @Param from query string false "Period start lower bound (YYYY-MM-DD)"
// @Param to query string false "Period start upper bound (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /stats/reports [get]
func (h *StatsReportHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.StatsReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, err)
		return
	}
	reports, pagination, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// Delete godoc
// @Summary Delete statistics report
// @Tags Statistics
// @Param id path string true "Report ID"
// @Success 204 {object} response.Envelope
// @Router /stats/reports/{id} [delete]
func (h *StatsReportHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
