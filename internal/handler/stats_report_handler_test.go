package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type fakeStatsReports struct {
	saved     dto.SaveStatsReportRequest
	review    dto.ReviewStatsReportRequest
	query     dto.StatsReportQuery
	lastID    string
	lastActor service.Actor
	report    *models.StatsReport
	err       error
}

func (f *fakeStatsReports) Save(_ context.Context, actor service.Actor, req dto.SaveStatsReportRequest) (*models.StatsReport, error) {
	f.lastActor, f.saved = actor, req
	return f.report, f.err
}

func (f *fakeStatsReports) Submit(_ context.Context, actor service.Actor, id string) (*models.StatsReport, error) {
	f.lastActor, f.lastID = actor, id
	return f.report, f.err
}

func (f *fakeStatsReports) Review(_ context.Context, actor service.Actor, id string, req dto.ReviewStatsReportRequest) (*models.StatsReport, error) {
	f.lastActor, f.lastID, f.review = actor, id, req
	return f.report, f.err
}

func (f *fakeStatsReports) Get(_ context.Context, actor service.Actor, id string) (*models.StatsReport, error) {
	f.lastActor, f.lastID = actor, id
	return f.report, f.err
}

func (f *fakeStatsReports) List(_ context.Context, actor service.Actor, query dto.StatsReportQuery) ([]models.StatsReport, *models.Pagination, error) {
	f.lastActor, f.query = actor, query
	if f.err != nil {
		return nil, nil, f.err
	}
	return []models.StatsReport{*f.report}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeStatsReports) Delete(_ context.Context, actor service.Actor, id string) error {
	f.lastActor, f.lastID = actor, id
	return f.err
}

var userClaims = &models.JWTClaims{UserID: "user-1", Role: models.RoleUser, HealthCenterID: "hc-1"}

func sampleReport() *models.StatsReport {
	return &models.StatsReport{
		ID:             "r-1",
		HealthCenterID: "hc-1",
		PeriodKind:     stats.PeriodDay,
		Status:         stats.StatusDraft,
		Data:           stats.TopicMap{"immunization.childrenVaccination": {Lectures: 2}},
	}
}

func TestStatsReportHandlerSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStatsReports{report: sampleReport()}
	handler := NewStatsReportHandler(svc)

	body := []byte(`{"periodKind":"day","date":"2024-05-31","data":{"immunization.childrenVaccination":{"lectures":2}},"submit":true}`)
	c, w := newGinContext(http.MethodPut, "/stats/reports", body)
	c.Set(middleware.ContextUserKey, userClaims)

	handler.Save(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hc-1", svc.lastActor.HealthCenterID)
	assert.True(t, svc.saved.Submit)
	assert.JSONEq(t, `{"immunization.childrenVaccination":{"lectures":2}}`, string(svc.saved.Data))

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "r-1", envelope.Data["id"])
}

func TestStatsReportHandlerSaveMapsServiceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatsReportHandler(&fakeStatsReports{err: appErrors.Clone(appErrors.ErrFinalized, "report is approved")})

	c, w := newGinContext(http.MethodPut, "/stats/reports", []byte(`{"periodKind":"day","date":"2024-05-31","data":{}}`))
	c.Set(middleware.ContextUserKey, userClaims)
	handler.Save(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, appErrors.ErrFinalized.Code, envelope.Error["code"])
}

func TestStatsReportHandlerSaveRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStatsReports{}
	handler := NewStatsReportHandler(svc)

	c, w := newGinContext(http.MethodPut, "/stats/reports", []byte(`{"periodKind":`))
	c.Set(middleware.ContextUserKey, userClaims)
	handler.Save(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastActor.ID)
}

func TestStatsReportHandlerReview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStatsReports{report: sampleReport()}
	handler := NewStatsReportHandler(svc)

	c, w := newGinContext(http.MethodPost, "/stats/reports/r-1/review", []byte(`{"status":"approved","notes":"ok"}`))
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Review(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r-1", svc.lastID)
	assert.Equal(t, stats.StatusApproved, svc.review.Status)
	require.NotNil(t, svc.review.Notes)
	assert.Equal(t, "ok", *svc.review.Notes)
}

func TestStatsReportHandlerListBindsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStatsReports{report: sampleReport()}
	handler := NewStatsReportHandler(svc)

	c, w := newGinContext(http.MethodGet, "/stats/reports?periodKind=month&status=submitted&status=approved&from=2024-01-01&page=2", nil)
	c.Set(middleware.ContextUserKey, userClaims)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "month", svc.query.PeriodKind)
	assert.Equal(t, []string{"submitted", "approved"}, svc.query.Status)
	assert.Equal(t, "2024-01-01", svc.query.From)
	assert.Equal(t, 2, svc.query.Page)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotNil(t, envelope.Pagination)
}

func TestStatsReportHandlerSubmitAndDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeStatsReports{report: sampleReport()}
	handler := NewStatsReportHandler(svc)

	c, w := newGinContext(http.MethodPost, "/stats/reports/r-1/submit", nil)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	c.Set(middleware.ContextUserKey, userClaims)
	handler.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodDelete, "/stats/reports/r-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.Delete(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "admin-1", svc.lastActor.ID)
}
