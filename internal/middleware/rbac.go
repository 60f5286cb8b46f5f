package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

// RequirePermission admits callers whose role may perform op under policy.
func RequirePermission(policy service.Policy, op service.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !service.ActorFromClaims(claims).Can(policy, op) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePermissionOrSelf is RequirePermission that also admits callers whose
// user id equals the :id route parameter.
func RequirePermissionOrSelf(policy service.Policy, op service.Operation) gin.HandlerFunc {
	guard := RequirePermission(policy, op)
	return func(c *gin.Context) {
		if claims, ok := currentClaims(c); ok && claims.UserID != "" && claims.UserID == c.Param("id") {
			c.Next()
			return
		}
		guard(c)
	}
}

func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}
