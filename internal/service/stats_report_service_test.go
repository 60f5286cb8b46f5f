package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/repository"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

type memStatsReportRepo struct {
	items map[string]*models.StatsReport
}

func newMemStatsReportRepo() *memStatsReportRepo {
	return &memStatsReportRepo{items: map[string]*models.StatsReport{}}
}

func (m *memStatsReportRepo) Upsert(ctx context.Context, report *models.StatsReport) error {
	for _, existing := range m.items {
		if existing.HealthCenterID == report.HealthCenterID && existing.PeriodKind == report.PeriodKind && existing.PeriodStart.Equal(report.PeriodStart) {
			if existing.Status.Final() {
				return repository.ErrReportFinalized
			}
			existing.Data = report.Data
			existing.Status = report.Status
			existing.ReviewedBy, existing.ReviewedAt, existing.ReviewNotes = nil, nil, nil
			if existing.SubmittedAt == nil && report.Status == stats.StatusSubmitted {
				now := time.Now().UTC()
				existing.SubmittedAt = &now
			}
			*report = *existing
			return nil
		}
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	stored := *report
	m.items[report.ID] = &stored
	return nil
}

func (m *memStatsReportRepo) FindByID(ctx context.Context, id string) (*models.StatsReport, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *r
	return &copy, nil
}

func (m *memStatsReportRepo) List(ctx context.Context, filter models.StatsReportFilter) ([]models.StatsReport, int, error) {
	var out []models.StatsReport
	for _, r := range m.items {
		if filter.HealthCenterID != "" && r.HealthCenterID != filter.HealthCenterID {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *memStatsReportRepo) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	r, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	if r.Status.Final() {
		return repository.ErrReportFinalized
	}
	r.Status = stats.StatusSubmitted
	if r.SubmittedAt == nil {
		r.SubmittedAt = &at
	}
	return nil
}

func (m *memStatsReportRepo) Review(ctx context.Context, id string, status stats.Status, reviewerID string, notes *string, at time.Time) error {
	r := m.items[id]
	r.Status = status
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &at
	r.ReviewNotes = notes
	return nil
}

func (m *memStatsReportRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type statsReportFixture struct {
	svc           *StatsReportService
	repo          *memStatsReportRepo
	notifications *memNotificationRepo
	audit         *auditSink
	metrics       *MetricsService
}

var (
	fieldUser   = Actor{ID: "user-1", Role: models.RoleUser, HealthCenterID: "hc-1"}
	centerAdmin = Actor{ID: "admin-1", Role: models.RoleAdmin}
)

func newStatsReportFixture(t *testing.T) statsReportFixture {
	t.Helper()
	manager := "manager-1"
	centers := newMemCenterRepo(
		models.HealthCenter{ID: "hc-1", Name: "North", Code: "N01", ManagerID: &manager, IsActive: true},
		models.HealthCenter{ID: "hc-2", Name: "Closed", Code: "C01", IsActive: false},
	)
	repo := newMemStatsReportRepo()
	notifications := &memNotificationRepo{}
	audit := &auditSink{}
	metrics := NewMetricsService()
	svc := NewStatsReportService(StatsReportServiceConfig{
		Repo:          repo,
		Centers:       centers,
		Notifications: NewNotificationService(notifications, nil),
		Metrics:       metrics,
		Audit:         audit,
	})
	return statsReportFixture{svc: svc, repo: repo, notifications: notifications, audit: audit, metrics: metrics}
}

func topicPayload(t *testing.T, topics map[string][4]int) json.RawMessage {
	t.Helper()
	body := map[string]map[string]int{}
	for id, v := range topics {
		body[id] = map[string]int{"individualMeetings": v[0], "lectures": v[1], "seminars": v[2], "healthEvents": v[3]}
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func TestStatsReportSaveDraftForOwnCenter(t *testing.T) {
	f := newStatsReportFixture(t)

	report, err := f.svc.Save(context.Background(), fieldUser, dto.SaveStatsReportRequest{
		PeriodKind: stats.PeriodDay,
		Date:       "2024-05-31",
		Data:       topicPayload(t, map[string][4]int{"immunization.childrenVaccination": {1, 2, 0, 3}}),
	})
	require.NoError(t, err)
	assert.Equal(t, "hc-1", report.HealthCenterID)
	assert.Equal(t, stats.StatusDraft, report.Status)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), report.PeriodStart)
	require.NotNil(t, report.Month)
	assert.Equal(t, 5, *report.Month)
	assert.Equal(t, 2024, report.Year)
	assert.Equal(t, stats.SubItem{IndividualMeetings: 1, Lectures: 2, HealthEvents: 3}, report.Data["immunization.childrenVaccination"])
	assert.Empty(t, f.notifications.items)
}

func TestStatsReportSaveRejectsMalformedCounters(t *testing.T) {
	f := newStatsReportFixture(t)

	_, err := f.svc.Save(context.Background(), fieldUser, dto.SaveStatsReportRequest{
		PeriodKind: stats.PeriodMonth,
		Month:      5,
		Year:       2024,
		Data:       json.RawMessage(`{"immunization.childrenVaccination":{"individualMeetings":-1,"lectures":0,"seminars":0,"healthEvents":0}}`),
	})
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "immunization.childrenVaccination")
	assert.Empty(t, f.repo.items)
}

func TestStatsReportSaveScopesAndPeriods(t *testing.T) {
	f := newStatsReportFixture(t)
	ctx := context.Background()

	_, err := f.svc.Save(ctx, fieldUser, dto.SaveStatsReportRequest{HealthCenterID: "hc-2", PeriodKind: stats.PeriodDay, Date: "2024-05-31"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Save(ctx, centerAdmin, dto.SaveStatsReportRequest{HealthCenterID: "hc-2", PeriodKind: stats.PeriodDay, Date: "2024-05-31"})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Save(ctx, fieldUser, dto.SaveStatsReportRequest{PeriodKind: stats.PeriodWeek, Year: 2021, Week: 53})
	assert.Equal(t, appErrors.ErrInvalidPeriod.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Save(ctx, fieldUser, dto.SaveStatsReportRequest{PeriodKind: stats.PeriodDay, Date: "31/05/2024"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	report, err := f.svc.Save(ctx, fieldUser, dto.SaveStatsReportRequest{PeriodKind: stats.PeriodWeek, Year: 2024, Week: 1})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), report.PeriodStart)
	require.NotNil(t, report.Week)
	assert.Equal(t, 1, *report.Week)
	assert.Nil(t, report.Month)
}

func TestStatsReportSaveUpdatesSamePeriod(t *testing.T) {
	f := newStatsReportFixture(t)
	ctx := context.Background()
	req := dto.SaveStatsReportRequest{
		PeriodKind: stats.PeriodMonth,
		Month:      5,
		Year:       2024,
		Data:       topicPayload(t, map[string][4]int{"a.b": {1, 0, 0, 0}}),
	}

	first, err := f.svc.Save(ctx, fieldUser, req)
	require.NoError(t, err)

	req.Data = topicPayload(t, map[string][4]int{"a.b": {5, 0, 0, 0}})
	req.Submit = true
	second, err := f.svc.Save(ctx, fieldUser, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.repo.items, 1)
	assert.Equal(t, stats.StatusSubmitted, second.Status)
	assert.EqualValues(t, 5, second.Data["a.b"].IndividualMeetings)

	require.Len(t, f.notifications.items, 1)
	assert.Equal(t, "manager-1", f.notifications.items[0].UserID)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionStatsSubmit, f.audit.entries[0].Action)

	f.repo.items[first.ID].Status = stats.StatusApproved
	_, err = f.svc.Save(ctx, fieldUser, req)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
}

func TestStatsReportSaveRespectsReviewDecisions(t *testing.T) {
	f := newStatsReportFixture(t)
	ctx := context.Background()
	req := dto.SaveStatsReportRequest{
		PeriodKind: stats.PeriodDay,
		Date:       "2024-05-30",
		Data:       topicPayload(t, map[string][4]int{"a.b": {1, 0, 0, 0}}),
		Submit:     true,
	}
	saved, err := f.svc.Save(ctx, fieldUser, req)
	require.NoError(t, err)

	notes := "recount lectures"
	_, err = f.svc.Review(ctx, centerAdmin, saved.ID, dto.ReviewStatsReportRequest{Status: stats.StatusRejected, Notes: &notes})
	require.NoError(t, err)

	req.Submit = false
	redone, err := f.svc.Save(ctx, fieldUser, req)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, redone.ID)
	assert.Equal(t, stats.StatusDraft, redone.Status)
	assert.Nil(t, redone.ReviewedBy)
	assert.Nil(t, redone.ReviewedAt)
	assert.Nil(t, redone.ReviewNotes)
	assert.NotNil(t, redone.SubmittedAt)

	_, err = f.svc.Submit(ctx, fieldUser, saved.ID)
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, centerAdmin, saved.ID, dto.ReviewStatsReportRequest{Status: stats.StatusReviewed})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, fieldUser, req)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	_, err = f.svc.Submit(ctx, fieldUser, saved.ID)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	assert.Equal(t, stats.StatusReviewed, f.repo.items[saved.ID].Status)
}

func TestStatsReportSubmitAndReview(t *testing.T) {
	f := newStatsReportFixture(t)
	ctx := context.Background()

	draft, err := f.svc.Save(ctx, fieldUser, dto.SaveStatsReportRequest{PeriodKind: stats.PeriodDay, Date: "2024-05-30"})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, centerAdmin, draft.ID, dto.ReviewStatsReportRequest{Status: stats.StatusApproved})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Review(ctx, fieldUser, draft.ID, dto.ReviewStatsReportRequest{Status: stats.StatusApproved})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	submitted, err := f.svc.Submit(ctx, fieldUser, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	again, err := f.svc.Submit(ctx, fieldUser, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.SubmittedAt, again.SubmittedAt)

	notes := "missing seminars"
	rejected, err := f.svc.Review(ctx, centerAdmin, draft.ID, dto.ReviewStatsReportRequest{Status: stats.StatusRejected, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, stats.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewedBy)
	assert.Equal(t, "admin-1", *rejected.ReviewedBy)

	last := f.notifications.items[len(f.notifications.items)-1]
	assert.Equal(t, "user-1", last.UserID)
	assert.Equal(t, models.NotificationWarning, last.Type)
	assert.Contains(t, last.Message, notes)

	_, err = f.svc.Submit(ctx, fieldUser, draft.ID)
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, centerAdmin, draft.ID, dto.ReviewStatsReportRequest{Status: stats.StatusApproved})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, fieldUser, draft.ID)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)

	assert.Equal(t, map[string]uint64{"draft": 1, "submitted": 2, "rejected": 1, "approved": 1}, f.metrics.Snapshot().ReportTransitions)
}

func TestStatsReportListAndGetScoped(t *testing.T) {
	f := newStatsReportFixture(t)
	ctx := context.Background()
	f.repo.items["r-1"] = &models.StatsReport{ID: "r-1", HealthCenterID: "hc-1", Status: stats.StatusSubmitted}
	f.repo.items["r-2"] = &models.StatsReport{ID: "r-2", HealthCenterID: "hc-9", Status: stats.StatusSubmitted}

	reports, pagination, err := f.svc.List(ctx, fieldUser, dto.StatsReportQuery{})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "r-1", reports[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = f.svc.List(ctx, fieldUser, dto.StatsReportQuery{HealthCenterID: "hc-9"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = f.svc.List(ctx, centerAdmin, dto.StatsReportQuery{Status: []string{"submitted,bogus"}})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	reports, _, err = f.svc.List(ctx, centerAdmin, dto.StatsReportQuery{})
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	_, err = f.svc.Get(ctx, fieldUser, "r-2")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	_, err = f.svc.Get(ctx, fieldUser, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatsReportDeleteRequiresAdmin(t *testing.T) {
	f := newStatsReportFixture(t)
	ctx := context.Background()
	f.repo.items["r-1"] = &models.StatsReport{ID: "r-1", HealthCenterID: "hc-1"}

	err := f.svc.Delete(ctx, fieldUser, "r-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Delete(ctx, centerAdmin, "r-1"))
	assert.Empty(t, f.repo.items)
	assert.Equal(t, models.AuditActionStatsDelete, f.audit.entries[0].Action)
}
