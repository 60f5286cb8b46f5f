package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	internalmiddleware "github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/response"
)

type auditSink struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (a *auditSink) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

// testAuthenticate trusts the X-Test-Role header in place of a bearer token.
func testAuthenticate(c *gin.Context) {
	role := c.GetHeader("X-Test-Role")
	if role == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return
	}
	c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
		UserID:         "caller-1",
		Role:           models.UserRole(role),
		HealthCenterID: c.GetHeader("X-Test-Center"),
	})
	c.Next()
}

func buildTestRouter(audit *auditSink) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	Register(router.Group("/api/v1"), Handlers{
		Auth:          NewAuthHandler(&fakeAuth{}, fakeBootstrapper{}),
		Users:         NewUserHandler(nil),
		Registry:      NewRegistryHandler(&fakeRegistry{}),
		HealthCenters: NewHealthCenterHandler(nil),
		Campaigns:     NewCampaignHandler(&fakeCampaigns{}),
		Registrations: NewRegistrationHandler(&fakeRegistrations{}),
		StatsReports:  NewStatsReportHandler(&fakeStatsReports{report: sampleReport()}),
		Consolidation: NewConsolidationHandler(&fakeConsolidation{}),
		Notifications: NewNotificationHandler(nil),
		Metrics:       NewMetricsHandler(service.NewMetricsService()),
	}, RouteConfig{
		Authenticate: testAuthenticate,
		Policy:       service.DefaultPolicy,
		Audit:        audit,
	})
	return router
}

func serve(router *gin.Engine, method, path, role string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
		req.Header.Set("X-Test-Center", "hc-1")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutesIntegration(t *testing.T) {
	audit := &auditSink{}
	router := buildTestRouter(audit)

	t.Run("reports require authentication", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/v1/stats/reports", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("user lists reports", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/v1/stats/reports", string(models.RoleUser))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("user cannot delete reports", func(t *testing.T) {
		w := serve(router, http.MethodDelete, "/api/v1/stats/reports/r-1", string(models.RoleUser))
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Empty(t, audit.entries)
	})

	t.Run("admin delete is audited", func(t *testing.T) {
		w := serve(router, http.MethodDelete, "/api/v1/stats/reports/r-1", string(models.RoleAdmin))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Len(t, audit.entries, 1)
		require.Equal(t, "STATS_DELETE_REQUEST", audit.entries[0].Action)
		require.Equal(t, "r-1", *audit.entries[0].ResourceID)
	})

	t.Run("coverage is consolidator only", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/v1/stats/coverage?year=2024", string(models.RoleUser))
		require.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, http.MethodGet, "/api/v1/stats/coverage?year=2024", string(models.RoleAdmin))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("registry readable by users", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/v1/stats/registry", string(models.RoleUser))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("registry management needs admin", func(t *testing.T) {
		w := serve(router, http.MethodDelete, "/api/v1/stats/categories/immunization", string(models.RoleUser))
		require.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, http.MethodDelete, "/api/v1/stats/categories/immunization", string(models.RoleAdmin))
		require.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("exports absent when disabled", func(t *testing.T) {
		w := serve(router, http.MethodPost, "/api/v1/stats/exports", string(models.RoleAdmin))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("campaigns readable by users, deletable by admins", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/v1/campaigns/stats", string(models.RoleUser))
		require.Equal(t, http.StatusOK, w.Code)

		w = serve(router, http.MethodDelete, "/api/v1/campaigns/camp-1", string(models.RoleUser))
		require.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, http.MethodDelete, "/api/v1/campaigns/camp-1", string(models.RoleAdmin))
		require.Equal(t, http.StatusNoContent, w.Code)

		w = serve(router, http.MethodGet, "/api/v1/activities/stats", string(models.RoleUser))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("registration queue needs user management", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/v1/users/registrations", string(models.RoleUser))
		require.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, http.MethodGet, "/api/v1/users/registrations", string(models.RoleAdmin))
		require.Equal(t, http.StatusOK, w.Code)

		w = serve(router, http.MethodPost, "/api/v1/users/registrations/req-1/reject", string(models.RoleAdmin))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("metrics summary for consolidators", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/v1/metrics/summary", string(models.RoleUser))
		require.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, http.MethodGet, "/api/v1/metrics/summary", string(models.RoleSuperAdmin))
		require.Equal(t, http.StatusOK, w.Code)
	})
}
