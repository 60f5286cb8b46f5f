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
	"github.com/samber/lo"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

const reportJobColumns = "id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message"

// ReportJobRepository persists export job metadata.
type ReportJobRepository struct {
	db *sqlx.DB
}

// NewReportJobRepository constructs the repository.
func NewReportJobRepository(db *sqlx.DB) *ReportJobRepository {
	return &ReportJobRepository{db: db}
}

// Create inserts a new job row with generated defaults.
func (r *ReportJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_jobs (id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ReportJobRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	err := r.db.GetContext(ctx, &job, `SELECT `+reportJobColumns+` FROM report_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("get report job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateReportJobParams defines the mutable fields. Nil fields are left untouched.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (p UpdateReportJobParams) columns() map[string]interface{} {
	set := map[string]interface{}{}
	add := func(column string, present bool, value func() interface{}) {
		if present {
			set[column] = value()
		}
	}
	add("status", p.Status != nil, func() interface{} { return *p.Status })
	add("progress", p.Progress != nil, func() interface{} { return *p.Progress })
	add("result_url", p.ResultURL != nil, func() interface{} { return *p.ResultURL })
	add("error_message", p.ErrorMessage != nil, func() interface{} { return *p.ErrorMessage })
	add("finished_at", p.FinishedAt != nil, func() interface{} { return *p.FinishedAt })
	return set
}

// Update writes the non-nil fields of params. An empty update is a no-op.
func (r *ReportJobRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	set := params.columns()
	if len(set) == 0 {
		return nil
	}

	stmt, args, err := psql.Update("report_jobs").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update report job: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// ListPending returns jobs a previous process left QUEUED or PROCESSING,
// oldest first.
func (r *ReportJobRepository) ListPending(ctx context.Context, limit int) ([]models.ReportJob, error) {
	q := psql.Select(reportJobColumns).From("report_jobs").
		Where(sq.Eq{"status": []models.ReportStatus{models.ReportStatusQueued, models.ReportStatusProcessing}}).
		OrderBy("created_at ASC")
	return r.selectJobs(ctx, "list pending report jobs", q, lo.Ternary(limit > 0, limit, 20))
}

// ListFinishedBefore returns finished jobs whose finished_at precedes cutoff.
func (r *ReportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	q := psql.Select(reportJobColumns).From("report_jobs").
		Where(sq.Eq{"status": models.ReportStatusFinished}).
		Where(sq.Lt{"finished_at": cutoff}).
		OrderBy("finished_at ASC")
	return r.selectJobs(ctx, "list finished report jobs", q, lo.Ternary(limit > 0, limit, 50))
}

func (r *ReportJobRepository) selectJobs(ctx context.Context, op string, q sq.SelectBuilder, limit int) ([]models.ReportJob, error) {
	stmt, args, err := q.Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, stmt, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}
