package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/repository"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/jobs"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

const (
	recoverBatch = 50
	cleanupBatch = 100
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListPending(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ReportService accepts export requests, tracks their jobs and serves the
// finished files behind signed links.
type ReportService struct {
	repo     reportJobStore
	queue    jobDispatcher
	exporter *ExportService
	policy   Policy
	logger   *zap.Logger
	cfg      ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
	Location        *time.Location
}

// ReportDownload is an opened export ready to stream.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, queue jobDispatcher, exporter *ExportService, policy Policy, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = DefaultPolicy
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{repo: repo, queue: queue, exporter: exporter, policy: policy, logger: logger, cfg: cfg}
}

// CreateJob records an export request and queues it. Actors without the
// consolidate permission always get a center export of their own center.
func (s *ReportService) CreateJob(ctx context.Context, actor Actor, req dto.ReportRequest) (*dto.ReportJobResponse, error) {
	if err := authorize(s.policy, actor, OpStatsExport); err != nil {
		return nil, err
	}
	kind, centerID, err := s.exportScope(actor, req)
	if err != nil {
		return nil, err
	}
	params, err := s.exportParams(req, centerID)
	if err != nil {
		return nil, err
	}

	job := &models.ReportJob{Type: kind, Params: params, Status: models.ReportStatusQueued, CreatedBy: actor.ID}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, internalError(err, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		if updateErr := s.repo.Update(ctx, job.ID, failedUpdate("failed to enqueue job")); updateErr != nil {
			s.logger.Warn("failed to mark unqueued job", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, internalError(err, "failed to enqueue report job")
	}

	s.logger.Info("export queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(kind)),
		zap.String("format", string(params.Format)),
		zap.String("health_center_id", centerID),
	)
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus returns the progress of a job. Actors without the consolidate
// permission only see jobs they created.
func (s *ReportService) GetStatus(ctx context.Context, actor Actor, id string) (*dto.ReportStatusResponse, error) {
	if err := authorize(s.policy, actor, OpStatsExport); err != nil {
		return nil, err
	}
	job, err := s.findJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.CreatedBy != actor.ID && !actor.Can(s.policy, OpStatsConsolidate) {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ReportStatusResponse{ID: job.ID, Status: job.Status, Progress: job.Progress, ResultURL: job.ResultURL}
	if lo.FromPtr(job.ErrorMessage) != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload opens the file behind a signed link. The token must be the
// one recorded on a finished job.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if tokenFromURL(lo.FromPtr(job.ResultURL)) != token {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, internalError(err, "failed to open export file")
	}
	return &ReportDownload{File: file, Filename: path.Base(relPath), Format: job.Params.Format, ExpiresAt: expiresAt}, nil
}

// RecoverPendingJobs requeues jobs a previous process left QUEUED or PROCESSING.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListPending(ctx, recoverBatch)
	if err != nil {
		s.logger.Warn("failed to list pending report jobs", zap.Error(err))
		return
	}
	recovered := 0
	for _, job := range pending {
		err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)})
		switch {
		case err == nil:
			recovered++
		case errors.Is(err, jobs.ErrDuplicate):
		default:
			s.logger.Warn("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if recovered > 0 {
		s.logger.Info("recovered queued report jobs", zap.Int("count", recovered))
	}
}

// StartCleanup purges expired export files every CleanupInterval until ctx ends.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	removed := 0
	for {
		batch, err := s.repo.ListFinishedBefore(ctx, cutoff, cleanupBatch)
		if err != nil {
			s.logger.Warn("failed to list expired exports", zap.Error(err))
			return
		}
		for _, job := range batch {
			token := tokenFromURL(lo.FromPtr(job.ResultURL))
			if token == "" {
				continue
			}
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Warn("failed to delete expired export", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			removed++
		}
		if len(batch) < cleanupBatch {
			break
		}
	}
	orphans, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export directory cleanup failed", zap.Error(err))
	}
	if removed+len(orphans) > 0 {
		s.logger.Info("expired exports removed", zap.Int("jobs", removed), zap.Int("files", len(orphans)))
	}
}

func (s *ReportService) findJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, internalError(err, "failed to load report job")
	}
	return job, nil
}

// exportScope decides the report type and the health center it is limited to.
func (s *ReportService) exportScope(actor Actor, req dto.ReportRequest) (models.ReportType, string, error) {
	kind := lo.Ternary(req.Type == "", models.ReportTypeConsolidated, req.Type)
	if kind != models.ReportTypeConsolidated && kind != models.ReportTypeCenter {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	centerID := strings.TrimSpace(req.HealthCenterID)

	if !actor.Can(s.policy, OpStatsConsolidate) {
		switch {
		case actor.HealthCenterID == "":
			return "", "", appErrors.Clone(appErrors.ErrForbidden, "user is not assigned to a health center")
		case centerID != "" && centerID != actor.HealthCenterID:
			return "", "", appErrors.Clone(appErrors.ErrForbidden, "cannot export another health center")
		}
		return models.ReportTypeCenter, actor.HealthCenterID, nil
	}
	if kind == models.ReportTypeCenter && centerID == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "healthCenterId is required for center reports")
	}
	return kind, centerID, nil
}

// exportParams validates the period, statuses and format of req. Statuses are
// stored normalized so the worker does not need to parse them again.
func (s *ReportService) exportParams(req dto.ReportRequest, centerID string) (models.ReportJobParams, error) {
	if !lo.Contains([]models.ReportFormat{models.ReportFormatCSV, models.ReportFormatPDF, models.ReportFormatXLSX}, req.Format) {
		return models.ReportJobParams{}, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	day, err := parseOptionalDate(req.Date, s.cfg.Location)
	if err != nil {
		return models.ReportJobParams{}, err
	}
	if _, err := (stats.PeriodQuery{Day: day, Week: req.Week, Month: req.Month, Year: req.Year}).Resolve(s.cfg.Location); err != nil {
		return models.ReportJobParams{}, validationFromStats(err)
	}
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return models.ReportJobParams{}, err
	}
	language := strings.ToLower(strings.TrimSpace(req.Language))
	return models.ReportJobParams{
		Date:           strings.TrimSpace(req.Date),
		Week:           req.Week,
		Month:          req.Month,
		Year:           req.Year,
		HealthCenterID: centerID,
		Statuses:       lo.Map(statuses, func(st stats.Status, _ int) string { return string(st) }),
		Format:         req.Format,
		Language:       lo.Ternary(language == "", "en", language),
	}, nil
}

func tokenFromURL(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

func failedUpdate(message string) repository.UpdateReportJobParams {
	return repository.UpdateReportJobParams{
		Status:       lo.ToPtr(models.ReportStatusFailed),
		Progress:     lo.ToPtr(100),
		ErrorMessage: lo.ToPtr(message),
		FinishedAt:   lo.ToPtr(time.Now().UTC()),
	}
}
