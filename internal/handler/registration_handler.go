package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
)

type registrationService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*models.RegistrationRequest, error)
	ListPending(ctx context.Context, actor service.Actor) ([]models.RegistrationRequest, error)
	Approve(ctx context.Context, actor service.Actor, id string, req dto.ApproveRegistrationRequest) (*models.RegistrationRequest, error)
	Reject(ctx context.Context, actor service.Actor, id string, req dto.RejectRegistrationRequest) (*models.RegistrationRequest, error)
}

// RegistrationHandler serves self-registration and its approval queue.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Register godoc
// @Summary Request an account
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated)(h.service.Register(c.Request.Context(), req))
}

// ListPending godoc
// @Summary List pending registrations
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/registrations [get]
func (h *RegistrationHandler) ListPending(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK)(h.service.ListPending(c.Request.Context(), actor))
}

// Approve godoc
// @Summary Approve registration
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.ApproveRegistrationRequest true "Role to grant"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ApproveRegistrationRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK)(h.service.Approve(c.Request.Context(), actor, c.Param("id"), req))
}

// Reject godoc
// @Summary Reject registration
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.RejectRegistrationRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /users/registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RejectRegistrationRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK)(h.service.Reject(c.Request.Context(), actor, c.Param("id"), req))
}
