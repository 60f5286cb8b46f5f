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

type registryService interface {
	ListCategories(ctx context.Context, includeInactive bool) ([]models.StatCategory, error)
	ListTopics(ctx context.Context, filter models.TopicFilter) ([]models.StatTopic, error)
	Ordered(ctx context.Context, includeInactive bool) ([]dto.RegistryCategory, error)
	CreateCategory(ctx context.Context, actor service.Actor, req dto.CategoryRequest) (*models.StatCategory, error)
	UpdateCategory(ctx context.Context, actor service.Actor, id string, req dto.CategoryRequest) (*models.StatCategory, error)
	DeleteCategory(ctx context.Context, actor service.Actor, id string) error
	CreateTopic(ctx context.Context, actor service.Actor, req dto.TopicRequest) (*models.StatTopic, error)
	UpdateTopic(ctx context.Context, actor service.Actor, id string, req dto.TopicRequest) (*models.StatTopic, error)
	DeleteTopic(ctx context.Context, actor service.Actor, id string) error
}

// RegistryHandler exposes the category and topic registry.
type RegistryHandler struct {
	service registryService
}

// NewRegistryHandler constructs the handler.
func NewRegistryHandler(svc registryService) *RegistryHandler {
	return &RegistryHandler{service: svc}
}

func includeInactive(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("includeInactive"))
	return v
}

// Registry godoc
// @Summary Ordered registry
// @Description Categories in display order with their topics nested
// @Tags Registry
// @Produce json
// @Param includeInactive query bool false "Include inactive entries"
// @Success 200 {object} response.Envelope
// @Router /stats/registry [get]
func (h *RegistryHandler) Registry(c *gin.Context) {
	ordered, err := h.service.Ordered(c.Request.Context(), includeInactive(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ordered, nil)
}

// ListCategories godoc
// @Summary List categories
// @Tags Registry
// @Produce json
// @Param includeInactive query bool false "Include inactive categories"
// @Success 200 {object} response.Envelope
// @Router /stats/categories [get]
func (h *RegistryHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context(), includeInactive(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// CreateCategory godoc
// @Summary Create category
// @Tags Registry
// @Accept json
// @Produce json
// @Param payload body dto.CategoryRequest true "Category payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stats/categories [post]
func (h *RegistryHandler) CreateCategory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	category, err := h.service.CreateCategory(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

// UpdateCategory godoc
// @Summary Update category
// @Tags Registry
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param payload body dto.CategoryRequest true "Category payload"
// @Success 200 {object} response.Envelope
// @Router /stats/categories/{id} [put]
func (h *RegistryHandler) UpdateCategory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	category, err := h.service.UpdateCategory(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, category, nil)
}

// DeleteCategory godoc
// @Summary Delete category
// @Description Refused while the category still has topics
// @Tags Registry
// @Param id path string true "Category ID"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /stats/categories/{id} [delete]
func (h *RegistryHandler) DeleteCategory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTopics godoc
// @Summary List topics
// @Tags Registry
// @Produce json
// @Param categoryId query string false "Category filter"
// @Param includeInactive query bool false "Include inactive topics"
// @Success 200 {object} response.Envelope
// @Router /stats/topics [get]
func (h *RegistryHandler) ListTopics(c *gin.Context) {
	topics, err := h.service.ListTopics(c.Request.Context(), models.TopicFilter{
		CategoryID:      c.Query("categoryId"),
		IncludeInactive: includeInactive(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topics, nil)
}

// CreateTopic godoc
// @Summary Create topic
// @Tags Registry
// @Accept json
// @Produce json
// @Param payload body dto.TopicRequest true "Topic payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stats/topics [post]
func (h *RegistryHandler) CreateTopic(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	topic, err := h.service.CreateTopic(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// UpdateTopic godoc
// @Summary Update topic
// @Tags Registry
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body dto.TopicRequest true "Topic payload"
// @Success 200 {object} response.Envelope
// @Router /stats/topics/{id} [put]
func (h *RegistryHandler) UpdateTopic(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	topic, err := h.service.UpdateTopic(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// DeleteTopic godoc
// @Summary Delete topic
// @Description Refused while reports still reference the topic
// @Tags Registry
// @Param id path string true "Topic ID"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /stats/topics/{id} [delete]
func (h *RegistryHandler) DeleteTopic(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteTopic(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
