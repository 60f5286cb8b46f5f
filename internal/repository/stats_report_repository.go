package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

// ErrReportFinalized is returned when a write targets a reviewed or approved report.
var ErrReportFinalized = errors.New("stats report is finalized")

// finalStatuses are the stored statuses that lock a report, see stats.Status.Final.
const finalStatuses = `('reviewed', 'approved')`

const statsReportColumns = "id, health_center_id, period_kind, period_start, week, month, year, data, status, created_by, submitted_at, reviewed_by, reviewed_at, review_notes, created_at, updated_at"

// StatsReportRepository persists periodic statistics reports.
type StatsReportRepository struct {
	db *sqlx.DB
}

// NewStatsReportRepository constructs the repository.
func NewStatsReportRepository(db *sqlx.DB) *StatsReportRepository {
	return &StatsReportRepository{db: db}
}

// Upsert creates the report or, when the center already has one for the same
// period, replaces its data and status in a single statement. A replaced
// report loses its review block. submitted_at is set the first time the
// report is submitted and kept afterwards. Reviewed and approved reports are
// left untouched and ErrReportFinalized is returned.
func (r *StatsReportRepository) Upsert(ctx context.Context, report *models.StatsReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	if report.Status == stats.StatusSubmitted && report.SubmittedAt == nil {
		report.SubmittedAt = &now
	}

	const query = `INSERT INTO stats_reports (id, health_center_id, period_kind, period_start, week, month, year, data, status, created_by, submitted_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (health_center_id, period_kind, period_start) DO UPDATE SET
    data = EXCLUDED.data,
    status = EXCLUDED.status,
    submitted_at = COALESCE(stats_reports.submitted_at, EXCLUDED.submitted_at),
    reviewed_by = NULL,
    reviewed_at = NULL,
    review_notes = NULL,
    updated_at = EXCLUDED.updated_at
WHERE stats_reports.status NOT IN ` + finalStatuses + `
RETURNING ` + statsReportColumns

	var stored models.StatsReport
	err := r.db.GetContext(ctx, &stored, query,
		report.ID, report.HealthCenterID, report.PeriodKind, report.PeriodStart, report.Week, report.Month, report.Year,
		report.Data, report.Status, report.CreatedBy, report.SubmittedAt, report.CreatedAt, report.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReportFinalized
	}
	if err != nil {
		return fmt.Errorf("upsert stats report: %w", err)
	}
	*report = stored
	return nil
}

// FindByID returns a report by identifier.
func (r *StatsReportRepository) FindByID(ctx context.Context, id string) (*models.StatsReport, error) {
	const query = `SELECT ` + statsReportColumns + ` FROM stats_reports WHERE id = $1`
	var report models.StatsReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find stats report: %w", err)
	}
	return &report, nil
}

func applyStatsReportFilter(query sq.SelectBuilder, filter models.StatsReportFilter) sq.SelectBuilder {
	if filter.HealthCenterID != "" {
		query = query.Where(sq.Eq{"health_center_id": filter.HealthCenterID})
	}
	if filter.PeriodKind != "" {
		query = query.Where(sq.Eq{"period_kind": filter.PeriodKind})
	}
	if len(filter.Statuses) > 0 {
		query = query.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.From != nil {
		query = query.Where(sq.GtOrEq{"period_start": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(sq.LtOrEq{"period_start": *filter.To})
	}
	return query
}

// List returns a page of reports and the total count for the filter.
func (r *StatsReportRepository) List(ctx context.Context, filter models.StatsReportFilter) ([]models.StatsReport, int, error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := applyStatsReportFilter(psql.Select(statsReportColumns).From("stats_reports"), filter).
		OrderBy("period_start DESC", "created_at DESC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))
	stmt, args, err := listQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list stats reports: %w", err)
	}
	var reports []models.StatsReport
	if err := r.db.SelectContext(ctx, &reports, stmt, args...); err != nil {
		return nil, 0, fmt.Errorf("list stats reports: %w", err)
	}

	countStmt, countArgs, err := applyStatsReportFilter(psql.Select("COUNT(*)").From("stats_reports"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count stats reports: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countStmt, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count stats reports: %w", err)
	}
	return reports, total, nil
}

// ListForAggregation returns every report matching the filter without paging.
// Drafts are never returned.
func (r *StatsReportRepository) ListForAggregation(ctx context.Context, filter models.StatsReportFilter) ([]models.StatsReport, error) {
	query := applyStatsReportFilter(psql.Select(statsReportColumns).From("stats_reports"), filter).
		Where(sq.NotEq{"status": stats.StatusDraft}).
		OrderBy("period_start ASC")
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build aggregation query: %w", err)
	}
	var reports []models.StatsReport
	if err := r.db.SelectContext(ctx, &reports, stmt, args...); err != nil {
		return nil, fmt.Errorf("list stats reports for aggregation: %w", err)
	}
	return reports, nil
}

// MarkSubmitted moves a report to submitted, stamping submitted_at only once.
// It returns ErrReportFinalized when the report was reviewed or approved
// first, and sql.ErrNoRows when it does not exist.
func (r *StatsReportRepository) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE stats_reports SET status = $2, submitted_at = COALESCE(submitted_at, $3), updated_at = $3
WHERE id = $1 AND status NOT IN ` + finalStatuses + `
RETURNING id`
	var updated string
	err := r.db.GetContext(ctx, &updated, query, id, stats.StatusSubmitted, at)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM stats_reports WHERE id = $1)`, id); err != nil {
			return fmt.Errorf("submit stats report: %w", err)
		}
		if exists {
			return ErrReportFinalized
		}
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("submit stats report: %w", err)
	}
	return nil
}

// Review stores the reviewer decision.
func (r *StatsReportRepository) Review(ctx context.Context, id string, status stats.Status, reviewerID string, notes *string, at time.Time) error {
	const query = `UPDATE stats_reports SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewerID, at, notes); err != nil {
		return fmt.Errorf("review stats report: %w", err)
	}
	return nil
}

// Delete removes a report.
func (r *StatsReportRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM stats_reports WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete stats report: %w", err)
	}
	return nil
}

// CountTopicReferences returns how many reports carry data for the topic.
func (r *StatsReportRepository) CountTopicReferences(ctx context.Context, topicID string) (int, error) {
	const query = `SELECT COUNT(*) FROM stats_reports WHERE jsonb_exists(data, $1)`
	var total int
	if err := r.db.GetContext(ctx, &total, query, topicID); err != nil {
		return 0, fmt.Errorf("count topic references: %w", err)
	}
	return total, nil
}

// Coverage counts, per month of year, the distinct centers with a report in one of the statuses.
func (r *StatsReportRepository) Coverage(ctx context.Context, year int, statuses []stats.Status) ([]models.CenterCoverage, error) {
	query := psql.Select("month", "COUNT(DISTINCT health_center_id) AS reporting_centers", "COUNT(*) AS reports").
		From("stats_reports").
		Where(sq.Eq{"year": year}).
		Where(sq.NotEq{"month": nil}).
		GroupBy("month").
		OrderBy("month ASC")
	if len(statuses) > 0 {
		query = query.Where(sq.Eq{"status": statuses})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build coverage query: %w", err)
	}
	var rows []models.CenterCoverage
	if err := r.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("stats coverage: %w", err)
	}
	return rows, nil
}
