package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

type fakeRegistry struct {
	includeInactive bool
	topicFilter     models.TopicFilter
	category        dto.CategoryRequest
	deleted         string
	deleteErr       error
}

func (f *fakeRegistry) ListCategories(_ context.Context, includeInactive bool) ([]models.StatCategory, error) {
	f.includeInactive = includeInactive
	return []models.StatCategory{{ID: "immunization", Name: "Immunization", IsActive: true}}, nil
}

func (f *fakeRegistry) ListTopics(_ context.Context, filter models.TopicFilter) ([]models.StatTopic, error) {
	f.topicFilter = filter
	return nil, nil
}

func (f *fakeRegistry) Ordered(_ context.Context, includeInactive bool) ([]dto.RegistryCategory, error) {
	f.includeInactive = includeInactive
	return []dto.RegistryCategory{{ID: "immunization", Name: "Immunization", Topics: []dto.RegistryTopic{}}}, nil
}

func (f *fakeRegistry) CreateCategory(_ context.Context, _ service.Actor, req dto.CategoryRequest) (*models.StatCategory, error) {
	f.category = req
	return &models.StatCategory{ID: "screening", Name: req.Name, IsActive: true}, nil
}

func (f *fakeRegistry) UpdateCategory(_ context.Context, _ service.Actor, id string, req dto.CategoryRequest) (*models.StatCategory, error) {
	f.category = req
	return &models.StatCategory{ID: id, Name: req.Name}, nil
}

func (f *fakeRegistry) DeleteCategory(_ context.Context, _ service.Actor, id string) error {
	f.deleted = id
	return f.deleteErr
}

func (f *fakeRegistry) CreateTopic(_ context.Context, _ service.Actor, req dto.TopicRequest) (*models.StatTopic, error) {
	return &models.StatTopic{ID: req.CategoryID + ".x", CategoryID: req.CategoryID, Name: req.Name}, nil
}

func (f *fakeRegistry) UpdateTopic(_ context.Context, _ service.Actor, id string, req dto.TopicRequest) (*models.StatTopic, error) {
	return &models.StatTopic{ID: id, CategoryID: req.CategoryID, Name: req.Name}, nil
}

func (f *fakeRegistry) DeleteTopic(_ context.Context, _ service.Actor, id string) error {
	f.deleted = id
	return f.deleteErr
}

func registryRouter(svc registryService, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewRegistryHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	manage := middleware.RequirePermission(service.DefaultPolicy, service.OpRegistryManage)
	r.GET("/stats/registry", handler.Registry)
	r.GET("/stats/categories", handler.ListCategories)
	r.GET("/stats/topics", handler.ListTopics)
	r.POST("/stats/categories", manage, handler.CreateCategory)
	r.DELETE("/stats/categories/:id", manage, handler.DeleteCategory)
	r.DELETE("/stats/topics/:id", manage, handler.DeleteTopic)
	return r
}

func TestRegistryHandlerListing(t *testing.T) {
	svc := &fakeRegistry{}
	r := registryRouter(svc, userClaims)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/registry?includeInactive=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.includeInactive)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/topics?categoryId=immunization", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "immunization", svc.topicFilter.CategoryID)
	assert.False(t, svc.topicFilter.IncludeInactive)
}

func TestRegistryHandlerManageRequiresPermission(t *testing.T) {
	svc := &fakeRegistry{}
	body := `{"name":"Screening","order":3}`

	w := httptest.NewRecorder()
	registryRouter(svc, userClaims).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stats/categories", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	req := httptest.NewRequest(http.MethodPost, "/stats/categories", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	registryRouter(svc, admin).ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Screening", svc.category.Name)
	assert.Equal(t, 3, svc.category.Order)
}

func TestRegistryHandlerDeletePrecondition(t *testing.T) {
	svc := &fakeRegistry{deleteErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "category still has topics")}
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	w := httptest.NewRecorder()
	registryRouter(svc, admin).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/stats/categories/immunization", nil))
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "immunization", svc.deleted)
}
