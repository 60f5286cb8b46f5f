package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
	Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) error
	ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error
	Me(ctx context.Context, userID string) (*models.UserInfo, error)
}

type bootstrapper interface {
	Bootstrap(ctx context.Context, req service.BootstrapRequest, meta models.LoginRequest) (*models.User, error)
}

// AuthHandler serves sign-in, token rotation and the account endpoints.
type AuthHandler struct {
	service authService
	users   bootstrapper
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, users bootstrapper) *AuthHandler {
	return &AuthHandler{service: svc, users: users}
}

// Login godoc
// @Summary Sign in
// @Description Exchanges email and password for an access and refresh token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	meta := requestMeta(c)
	req.IP, req.UserAgent = meta.IP, meta.UserAgent

	respond(c, http.StatusOK)(h.service.Login(c.Request.Context(), req))
}

// Refresh godoc
// @Summary Rotate tokens
// @Description Consumes a refresh token and issues a new pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	meta := requestMeta(c)
	req.IP, req.UserAgent = meta.IP, meta.UserAgent

	respond(c, http.StatusOK)(h.service.RefreshToken(c.Request.Context(), req))
}

// Bootstrap godoc
// @Summary Create the first super administrator
// @Description Only succeeds while no user exists
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body service.BootstrapRequest true "Bootstrap payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/bootstrap [post]
func (h *AuthHandler) Bootstrap(c *gin.Context) {
	var req service.BootstrapRequest
	if !bindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated)(h.users.Bootstrap(c.Request.Context(), req, requestMeta(c)))
}

type logoutPayload struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Logout godoc
// @Summary Sign out
// @Description Revokes one refresh token owned by the caller
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body logoutPayload true "Refresh token"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var payload logoutPayload
	if !bindJSON(c, &payload) {
		return
	}
	if err := h.service.Logout(c.Request.Context(), payload.RefreshToken, claims.UserID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change password
// @Description Replaces the caller's password and revokes their sessions
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Old and new password"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current account
// @Description Returns the signed-in user with their role and health center
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK)(h.service.Me(c.Request.Context(), claims.UserID))
}
