package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

type healthCenterService interface {
	List(ctx context.Context, actor service.Actor, filter models.HealthCenterFilter) ([]models.HealthCenter, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.HealthCenter, error)
	Create(ctx context.Context, actor service.Actor, req dto.HealthCenterRequest) (*models.HealthCenter, error)
	Update(ctx context.Context, actor service.Actor, id string, req dto.HealthCenterRequest) (*models.HealthCenter, error)
}

// HealthCenterHandler manages health center endpoints.
type HealthCenterHandler struct {
	service healthCenterService
}

// NewHealthCenterHandler constructs the handler.
func NewHealthCenterHandler(svc healthCenterService) *HealthCenterHandler {
	return &HealthCenterHandler{service: svc}
}

// List godoc
// @Summary List health centers
// @Tags HealthCenters
// @Produce json
// @Param active query bool false "Active filter"
// @Param district query string false "District filter"
// @Param search query string false "Search by name or code"
// @Success 200 {object} response.Envelope
// @Router /health-centers [get]
func (h *HealthCenterHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.HealthCenterFilter{District: c.Query("district"), Search: c.Query("search")}
	if raw := c.Query("active"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &v
		}
	}
	centers, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, centers, nil)
}

// Get godoc
// @Summary Get health center
// @Tags HealthCenters
// @Produce json
// @Param id path string true "Health center ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /health-centers/{id} [get]
func (h *HealthCenterHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	center, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, center, nil)
}

// Create godoc
// @Summary Create health center
// @Tags HealthCenters
// @Accept json
// @Produce json
// @Param payload body dto.HealthCenterRequest true "Health center payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /health-centers [post]
func (h *HealthCenterHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.HealthCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	center, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, center)
}

// Update godoc
// @Summary Update health center
// @Tags HealthCenters
// @Accept json
// @Produce json
// @Param id path string true "Health center ID"
// @Param payload body dto.HealthCenterRequest true "Health center payload"
// @Success 200 {object} response.Envelope
// @Router /health-centers/{id} [put]
func (h *HealthCenterHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.HealthCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	center, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, center, nil)
}
