package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/service"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

type consolidationService interface {
	Consolidate(ctx context.Context, actor service.Actor, query dto.ConsolidatedQuery) (*dto.ConsolidatedResponse, bool, error)
	Coverage(ctx context.Context, actor service.Actor, year int, rawStatuses []string) (*dto.CoverageResponse, error)
}

// ConsolidationHandler serves aggregated statistics.
type ConsolidationHandler struct {
	service consolidationService
}

// NewConsolidationHandler constructs the handler.
func NewConsolidationHandler(svc consolidationService) *ConsolidationHandler {
	return &ConsolidationHandler{service: svc}
}

// Consolidated godoc
// @Summary Consolidated statistics
// @Description Sums every qualifying report of a day, ISO week or month per topic and counter
// @Tags Statistics
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param week query int false "ISO week, requires year"
// @Param month query int false "Month, requires year"
// @Param year query int false "Year"
// @Param kind query string false "Report period kind to aggregate (default day)"
// @Param status query []string false "Accepted statuses (default submitted)"
// @Param healthCenterId query string false "Restrict to one health center"
// @Param includeInactive query bool false "Keep inactive registry entries in the summary"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /stats/consolidated [get]
func (h *ConsolidationHandler) Consolidated(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ConsolidatedQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, err)
		return
	}
	resp, cacheHit, err := h.service.Consolidate(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, resp, nil, middleware.ExtractMeta(c))
}

// Coverage godoc
// @Summary Monthly reporting coverage
// @Description Share of active health centers that reported in each month of a year
// @Tags Statistics
// @Produce json
// @Param year query int false "Year (defaults to the current year)"
// @Param status query []string false "Counted statuses"
// @Success 200 {object} response.Envelope
// @Router /stats/coverage [get]
func (h *ConsolidationHandler) Coverage(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a positive integer"))
			return
		}
		year = parsed
	}
	resp, err := h.service.Coverage(c.Request.Context(), actor, year, c.QueryArray("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
