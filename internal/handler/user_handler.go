package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, actor service.Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.User, error)
	Create(ctx context.Context, actor service.Actor, req service.CreateUserRequest, meta models.LoginRequest) (*models.User, error)
	Update(ctx context.Context, actor service.Actor, id string, req service.UpdateUserRequest, meta models.LoginRequest) (*models.User, error)
	Deactivate(ctx context.Context, actor service.Actor, id string, meta models.LoginRequest) error
}

// UserHandler exposes staff account management.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

type userListQuery struct {
	Page           int    `form:"page,default=1"`
	PageSize       int    `form:"page_size,default=20"`
	Role           string `form:"role"`
	Active         *bool  `form:"active"`
	HealthCenterID string `form:"health_center_id"`
	Search         string `form:"search"`
	SortBy         string `form:"sort_by"`
	SortOrder      string `form:"sort_order"`
}

func (q userListQuery) filter() models.UserFilter {
	filter := models.UserFilter{
		Page:      q.Page,
		PageSize:  q.PageSize,
		Active:    q.Active,
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Role != "" {
		filter.Role = lo.ToPtr(models.UserRole(q.Role))
	}
	if q.HealthCenterID != "" {
		filter.HealthCenterID = lo.ToPtr(q.HealthCenterID)
	}
	return filter
}

// List godoc
// @Summary List users
// @Description Pages through accounts visible to the caller
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "SUPERADMIN, ADMIN or USER"
// @Param active query bool false "Only active or inactive accounts"
// @Param health_center_id query string false "Assigned health center"
// @Param search query string false "Matches email or full name"
// @Param sort_by query string false "email, full_name, created_at, updated_at or last_login"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query userListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidPayload(c, err)
		return
	}

	users, pagination, err := h.service.List(c.Request.Context(), actor, query.filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK)(h.service.Get(c.Request.Context(), actor, c.Param("id")))
}

// Create godoc
// @Summary Create user
// @Description Administrators create accounts below their own role
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "New account"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated)(h.service.Create(c.Request.Context(), actor, req, requestMeta(c)))
}

// Update godoc
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK)(h.service.Update(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c)))
}

// Delete godoc
// @Summary Deactivate user
// @Description Marks the account inactive and revokes its sessions
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
