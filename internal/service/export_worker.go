package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/repository"
	"github.com/noah-isme/health-campaign-api/pkg/jobs"
)

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportWorker runs queued export jobs and records their outcome.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker. A job is marked FAILED once it has
// been attempted maxRetries times.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{repo: repo, exporter: exporter, metrics: metrics, logger: logger, maxRetries: maxRetries}
}

// Handle is the queue handler. A returned error asks the queue to retry.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.ReportStatusFinished || record.Status == models.ReportStatusFailed {
		w.logger.Debug("skipping settled export job", zap.String("job_id", job.ID), zap.String("status", string(record.Status)))
		return nil
	}

	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:   lo.ToPtr(models.ReportStatusProcessing),
		Progress: lo.ToPtr(10),
	}); err != nil {
		return err
	}

	start := time.Now()
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		w.fail(ctx, record, job.Attempt, err)
		return err
	}

	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       lo.ToPtr(models.ReportStatusFinished),
		Progress:     lo.ToPtr(100),
		ResultURL:    lo.ToPtr(result.URL),
		ErrorMessage: lo.ToPtr(""),
		FinishedAt:   lo.ToPtr(time.Now().UTC()),
	}); err != nil {
		w.logger.Warn("failed to mark export finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordExportJob(string(record.Params.Format), string(models.ReportStatusFinished))
	w.logger.Info("export finished",
		zap.String("job_id", job.ID),
		zap.String("format", string(record.Params.Format)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// fail puts the job back to QUEUED for another attempt, or marks it FAILED
// when attempts are exhausted.
func (w *ReportWorker) fail(ctx context.Context, record *models.ReportJob, attempt int, cause error) {
	update := repository.UpdateReportJobParams{
		Status:       lo.ToPtr(models.ReportStatusQueued),
		Progress:     lo.ToPtr(0),
		ErrorMessage: lo.ToPtr(cause.Error()),
	}
	final := attempt >= w.maxRetries
	if final {
		update = failedUpdate(cause.Error())
	}
	if err := w.repo.Update(ctx, record.ID, update); err != nil {
		w.logger.Warn("failed to record export failure", zap.String("job_id", record.ID), zap.Error(err))
	}
	if final {
		w.metrics.RecordExportJob(string(record.Params.Format), string(models.ReportStatusFailed))
		w.logger.Error("export failed", zap.String("job_id", record.ID), zap.Int("attempts", attempt), zap.Error(cause))
	}
}
