package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

var reportColumns = []string{"id", "health_center_id", "period_kind", "period_start", "week", "month", "year", "data", "status", "created_by", "submitted_at", "reviewed_by", "reviewed_at", "review_notes", "created_at", "updated_at"}

func TestStatsReportRepositoryUpsertReturnsStoredRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	start := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	firstSubmit := time.Date(2024, 5, 31, 9, 0, 0, 0, time.UTC)
	month := 5
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (health_center_id, period_kind, period_start) DO UPDATE SET")).
		WithArgs(sqlmock.AnyArg(), "hc-1", "day", start, nil, 5, 2024, sqlmock.AnyArg(), "draft", "user-1", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(reportColumns).AddRow(
			"existing-id", "hc-1", "day", start, nil, 5, 2024, `{"t1":{"individualMeetings":2,"lectures":0,"seminars":0,"healthEvents":0}}`,
			"draft", "user-1", firstSubmit, nil, nil, nil, start, time.Now(),
		))

	report := &models.StatsReport{
		HealthCenterID: "hc-1",
		PeriodKind:     stats.PeriodDay,
		PeriodStart:    start,
		Month:          &month,
		Year:           2024,
		Data:           stats.TopicMap{"t1": {IndividualMeetings: 2}},
		Status:         stats.StatusDraft,
		CreatedBy:      "user-1",
	}
	require.NoError(t, repo.Upsert(context.Background(), report))
	require.Equal(t, "existing-id", report.ID, "conflicting period resolves to the stored row")
	require.NotNil(t, report.SubmittedAt)
	require.True(t, firstSubmit.Equal(*report.SubmittedAt), "a later draft keeps the first submission time")
	require.Equal(t, stats.SubItem{IndividualMeetings: 2}, report.Data["t1"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryUpsertGuardsFinalReports(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	start := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`    reviewed_by = NULL,
    reviewed_at = NULL,
    review_notes = NULL,
    updated_at = EXCLUDED.updated_at
WHERE stats_reports.status NOT IN ('reviewed', 'approved')
RETURNING`)).
		WillReturnRows(sqlmock.NewRows(reportColumns))

	month := 5
	report := &models.StatsReport{HealthCenterID: "hc-1", PeriodKind: stats.PeriodDay, PeriodStart: start, Month: &month, Year: 2024, Status: stats.StatusDraft, CreatedBy: "user-1"}
	require.ErrorIs(t, repo.Upsert(context.Background(), report), ErrReportFinalized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryUpsertStampsSubmission(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO stats_reports")).
		WithArgs(sqlmock.AnyArg(), "hc-1", "month", sqlmock.AnyArg(), nil, 5, 2024, sqlmock.AnyArg(), "submitted", "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(reportColumns).AddRow(
			"r-1", "hc-1", "month", now, nil, 5, 2024, `{}`, "submitted", "user-1", now, nil, nil, nil, now, now,
		))

	month := 5
	report := &models.StatsReport{HealthCenterID: "hc-1", PeriodKind: stats.PeriodMonth, PeriodStart: now, Month: &month, Year: 2024, Status: stats.StatusSubmitted, CreatedBy: "user-1"}
	require.NoError(t, repo.Upsert(context.Background(), report))
	require.NotNil(t, report.SubmittedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryScansLegacyPayload(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	now := time.Now()
	legacy := `"{\"immunization\":{\"childrenVaccination\":{\"individualMeetings\":\"3\",\"lectures\":1}}}"`
	mock.ExpectQuery(regexp.QuoteMeta("FROM stats_reports WHERE id = $1")).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(reportColumns).AddRow(
			"r-1", "hc-1", "week", now, 22, nil, 2024, legacy, "approved", "user-1", now, "admin-1", now, "ok", now, now,
		))

	report, err := repo.FindByID(context.Background(), "r-1")
	require.NoError(t, err)
	require.Equal(t, stats.SubItem{IndividualMeetings: 3, Lectures: 1}, report.Data["immunization.childrenVaccination"])
	require.Equal(t, stats.StatusApproved, report.Status)
	require.Equal(t, 22, *report.Week)
}

func TestStatsReportRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	filter := models.StatsReportFilter{
		HealthCenterID: "hc-1",
		Statuses:       []stats.Status{stats.StatusSubmitted, stats.StatusApproved},
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM stats_reports WHERE health_center_id = $1 AND status IN ($2,$3) ORDER BY period_start DESC, created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("hc-1", "submitted", "approved").
		WillReturnRows(sqlmock.NewRows(reportColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM stats_reports WHERE health_center_id = $1 AND status IN ($2,$3)")).
		WithArgs("hc-1", "submitted", "approved").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	reports, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	require.Empty(t, reports)
	require.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryListForAggregationExcludesDrafts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 999000000, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stats_reports WHERE period_kind = $1 AND period_start >= $2 AND period_start <= $3 AND status <> $4 ORDER BY period_start ASC")).
		WithArgs("day", from, to, "draft").
		WillReturnRows(sqlmock.NewRows(reportColumns))

	_, err := repo.ListForAggregation(context.Background(), models.StatsReportFilter{PeriodKind: stats.PeriodDay, From: &from, To: &to})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryMarkSubmittedKeepsFirstStamp(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	at := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stats_reports SET status = $2, submitted_at = COALESCE(submitted_at, $3), updated_at = $3\nWHERE id = $1 AND status NOT IN ('reviewed', 'approved')")).
		WithArgs("r-1", "submitted", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))

	require.NoError(t, repo.MarkSubmitted(context.Background(), "r-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryMarkSubmittedRefusesFinalReports(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	at := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stats_reports SET status = $2")).
		WithArgs("r-1", "submitted", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM stats_reports WHERE id = $1)")).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	require.ErrorIs(t, repo.MarkSubmitted(context.Background(), "r-1", at), ErrReportFinalized)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stats_reports SET status = $2")).
		WithArgs("missing", "submitted", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM stats_reports WHERE id = $1)")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	require.ErrorIs(t, repo.MarkSubmitted(context.Background(), "missing", at), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryCoverage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT month, COUNT(DISTINCT health_center_id) AS reporting_centers, COUNT(*) AS reports FROM stats_reports WHERE year = $1 AND month IS NOT NULL AND status IN ($2) GROUP BY month ORDER BY month ASC")).
		WithArgs(2024, "approved").
		WillReturnRows(sqlmock.NewRows([]string{"month", "reporting_centers", "reports"}).AddRow(5, 3, 40))

	rows, err := repo.Coverage(context.Background(), 2024, []stats.Status{stats.StatusApproved})
	require.NoError(t, err)
	require.Equal(t, []models.CenterCoverage{{Month: 5, ReportingCenters: 3, Reports: 40}}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsReportRepositoryCountTopicReferences(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM stats_reports WHERE jsonb_exists(data, $1)")).
		WithArgs("immunization.childrenVaccination").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	total, err := repo.CountTopicReferences(context.Background(), "immunization.childrenVaccination")
	require.NoError(t, err)
	require.Equal(t, 2, total)
}
