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

type campaignService interface {
	List(ctx context.Context, actor service.Actor, query dto.CampaignQuery) ([]models.Campaign, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Campaign, error)
	Create(ctx context.Context, actor service.Actor, req dto.CampaignRequest) (*models.Campaign, error)
	UpdateStatus(ctx context.Context, actor service.Actor, id string, req dto.CampaignStatusRequest) (*models.Campaign, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	Stats(ctx context.Context, actor service.Actor) (*models.CampaignStats, error)
	AddActivity(ctx context.Context, actor service.Actor, campaignID string, req dto.ActivityRequest) (*models.Activity, error)
	ListActivities(ctx context.Context, actor service.Actor, campaignID string) ([]models.Activity, error)
	ActivityStats(ctx context.Context, actor service.Actor) (*models.ActivityStats, error)
}

// CampaignHandler serves campaign and activity endpoints.
type CampaignHandler struct {
	service campaignService
}

// NewCampaignHandler constructs the handler.
func NewCampaignHandler(svc campaignService) *CampaignHandler {
	return &CampaignHandler{service: svc}
}

// List godoc
// @Summary List campaigns
// @Tags Campaigns
// @Produce json
// @Param healthCenterId query string false "Health center filter"
// @Param status query string false "planned, active or completed"
// @Param search query string false "Search by title"
// @Success 200 {object} response.Envelope
// @Router /campaigns [get]
func (h *CampaignHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.CampaignQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, err)
		return
	}
	respond(c, http.StatusOK)(h.service.List(c.Request.Context(), actor, query))
}

// Get godoc
// @Summary Get campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id} [get]
func (h *CampaignHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK)(h.service.Get(c.Request.Context(), actor, c.Param("id")))
}

// Create godoc
// @Summary Plan campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param payload body dto.CampaignRequest true "Campaign payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /campaigns [post]
func (h *CampaignHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CampaignRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated)(h.service.Create(c.Request.Context(), actor, req))
}

// UpdateStatus godoc
// @Summary Change campaign status
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param payload body dto.CampaignStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /campaigns/{id}/status [patch]
func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CampaignStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK)(h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req))
}

// Delete godoc
// @Summary Delete campaign
// @Tags Campaigns
// @Param id path string true "Campaign ID"
// @Success 204
// @Router /campaigns/{id} [delete]
func (h *CampaignHandler) Delete(c *gin.Context) {
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

// Stats godoc
// @Summary Campaign counts per status
// @Tags Campaigns
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /campaigns/stats [get]
func (h *CampaignHandler) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK)(h.service.Stats(c.Request.Context(), actor))
}

// AddActivity godoc
// @Summary Record campaign activity
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param payload body dto.ActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Router /campaigns/{id}/activities [post]
func (h *CampaignHandler) AddActivity(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated)(h.service.AddActivity(c.Request.Context(), actor, c.Param("id"), req))
}

// ListActivities godoc
// @Summary List campaign activities
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/activities [get]
func (h *CampaignHandler) ListActivities(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK)(h.service.ListActivities(c.Request.Context(), actor, c.Param("id")))
}

// ActivityStats godoc
// @Summary Activity totals by type
// @Tags Campaigns
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /activities/stats [get]
func (h *CampaignHandler) ActivityStats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK)(h.service.ActivityStats(c.Request.Context(), actor))
}
