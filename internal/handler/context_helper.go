package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// requireClaims returns the token claims or writes 401 and reports false.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// actorFromContext returns the caller or writes 401 and reports false.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims, ok := requireClaims(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.ActorFromClaims(claims), true
}

func requestMeta(c *gin.Context) models.LoginRequest {
	return models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func invalidPayload(c *gin.Context, err error) {
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
}

// bindJSON decodes the request body into dst, writing 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		invalidPayload(c, err)
		return false
	}
	return true
}

// respond returns a sink for a (value, error) pair: errors go through the
// error envelope, values are written with status.
func respond(c *gin.Context, status int) func(interface{}, error) {
	return func(value interface{}, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		if status == http.StatusCreated {
			response.Created(c, value)
			return
		}
		response.JSON(c, status, value, nil)
	}
}
