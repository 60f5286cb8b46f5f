package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/repository"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

const dateLayout = "2006-01-02"

type statsReportRepository interface {
	Upsert(ctx context.Context, report *models.StatsReport) error
	FindByID(ctx context.Context, id string) (*models.StatsReport, error)
	List(ctx context.Context, filter models.StatsReportFilter) ([]models.StatsReport, int, error)
	MarkSubmitted(ctx context.Context, id string, at time.Time) error
	Review(ctx context.Context, id string, status stats.Status, reviewerID string, notes *string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type reportCenterLookup interface {
	FindByID(ctx context.Context, id string) (*models.HealthCenter, error)
}

// StatsReportService handles report entry and the submission and review workflow.
type StatsReportService struct {
	repo          statsReportRepository
	centers       reportCenterLookup
	notifications *NotificationService
	metrics       *MetricsService
	audit         auditRecorder
	cache         *CacheService
	policy        Policy
	validator     *validator.Validate
	logger        *zap.Logger
	loc           *time.Location
	now           func() time.Time
}

// StatsReportServiceConfig groups the collaborators of StatsReportService.
type StatsReportServiceConfig struct {
	Repo          statsReportRepository
	Centers       reportCenterLookup
	Notifications *NotificationService
	Metrics       *MetricsService
	Audit         auditRecorder
	Cache         *CacheService
	Policy        Policy
	Validator     *validator.Validate
	Logger        *zap.Logger
	Location      *time.Location
}

// NewStatsReportService constructs the service.
func NewStatsReportService(cfg StatsReportServiceConfig) *StatsReportService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &StatsReportService{
		repo:          cfg.Repo,
		centers:       cfg.Centers,
		notifications: cfg.Notifications,
		metrics:       cfg.Metrics,
		audit:         cfg.Audit,
		cache:         cfg.Cache,
		policy:        cfg.Policy,
		validator:     cfg.Validator,
		logger:        cfg.Logger,
		loc:           cfg.Location,
		now:           time.Now,
	}
}

// Save creates the center's report for the period or replaces the data of the
// existing one, dropping any earlier review. Reviewed and approved reports are
// final. With Submit set the report is submitted in the same call; otherwise
// it is stored as a draft.
func (s *StatsReportService) Save(ctx context.Context, actor Actor, req dto.SaveStatsReportRequest) (*models.StatsReport, error) {
	if err := authorize(s.policy, actor, OpStatsSubmit); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid report payload")
	}

	centerID, err := s.targetCenter(actor, req.HealthCenterID)
	if err != nil {
		return nil, err
	}
	center, err := s.loadCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if !center.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "health center is inactive")
	}

	report, err := s.periodFor(req)
	if err != nil {
		return nil, err
	}
	data, err := stats.DecodeTopicMap(req.Data)
	if err != nil {
		return nil, validationFromStats(err)
	}

	report.HealthCenterID = centerID
	report.Data = data
	report.CreatedBy = actor.ID
	report.Status = stats.StatusDraft
	if req.Submit {
		report.Status = stats.StatusSubmitted
	}
	if err := s.repo.Upsert(ctx, report); err != nil {
		if errors.Is(err, repository.ErrReportFinalized) {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "report already reviewed")
		}
		return nil, internalError(err, "failed to save report")
	}
	s.metrics.RecordReportTransition(string(report.Status))

	s.logger.Info("stats report saved",
		zap.String("report_id", report.ID),
		zap.String("health_center_id", centerID),
		zap.String("period_kind", string(report.PeriodKind)),
		zap.Time("period_start", report.PeriodStart),
		zap.String("status", string(report.Status)),
		zap.Int("topics", len(data)),
	)
	if req.Submit {
		s.submitted(ctx, actor, report, center)
	}
	s.invalidate(ctx)
	return report, nil
}

// Submit moves a draft or rejected report to submitted. Submitting twice is a no-op.
func (s *StatsReportService) Submit(ctx context.Context, actor Actor, id string) (*models.StatsReport, error) {
	if err := authorize(s.policy, actor, OpStatsSubmit); err != nil {
		return nil, err
	}
	report, err := s.loadScoped(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	switch {
	case report.Status == stats.StatusSubmitted:
		return report, nil
	case report.Status.Final():
		return nil, appErrors.Clone(appErrors.ErrFinalized, fmt.Sprintf("report already %s", report.Status))
	}

	if err := s.repo.MarkSubmitted(ctx, id, s.now().UTC()); err != nil {
		switch {
		case errors.Is(err, repository.ErrReportFinalized):
			return nil, appErrors.Clone(appErrors.ErrFinalized, "report already reviewed")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, internalError(err, "failed to submit report")
	}
	s.metrics.RecordReportTransition(string(stats.StatusSubmitted))
	report, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	center, err := s.loadCenter(ctx, report.HealthCenterID)
	if err != nil {
		s.logger.Warn("submitted report center missing", zap.String("report_id", id), zap.Error(err))
	}
	s.submitted(ctx, actor, report, center)
	s.invalidate(ctx)
	return report, nil
}

// Review records an administrator decision on a submitted report and notifies its author.
func (s *StatsReportService) Review(ctx context.Context, actor Actor, id string, req dto.ReviewStatsReportRequest) (*models.StatsReport, error) {
	if err := authorize(s.policy, actor, OpStatsReview); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid review payload")
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Status == stats.StatusDraft {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report has not been submitted")
	}
	if report.Status == stats.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "report already approved")
	}

	if err := s.repo.Review(ctx, id, req.Status, actor.ID, req.Notes, s.now().UTC()); err != nil {
		return nil, internalError(err, "failed to review report")
	}
	s.metrics.RecordReportTransition(string(req.Status))
	report, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	kind, verb := models.NotificationInfo, "reviewed"
	switch req.Status {
	case stats.StatusApproved:
		kind, verb = models.NotificationSuccess, "approved"
	case stats.StatusRejected:
		kind, verb = models.NotificationWarning, "rejected"
	}
	message := fmt.Sprintf("Your %s report starting %s was %s.", report.PeriodKind, report.PeriodStart.In(s.loc).Format(dateLayout), verb)
	if req.Notes != nil && strings.TrimSpace(*req.Notes) != "" {
		message += " Notes: " + strings.TrimSpace(*req.Notes)
	}
	s.notifications.Notify(ctx, report.CreatedBy, kind, "Report "+verb, message, reportLink(report.ID))

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionStatsReview, string(req.Status), report.ID)
	s.invalidate(ctx)
	return report, nil
}

// Get returns one report the actor may see.
func (s *StatsReportService) Get(ctx context.Context, actor Actor, id string) (*models.StatsReport, error) {
	if err := authorize(s.policy, actor, OpStatsRead); err != nil {
		return nil, err
	}
	return s.loadScoped(ctx, actor, id)
}

// List returns a page of reports. Plain users are restricted to their own center.
func (s *StatsReportService) List(ctx context.Context, actor Actor, query dto.StatsReportQuery) ([]models.StatsReport, *models.Pagination, error) {
	if err := authorize(s.policy, actor, OpStatsRead); err != nil {
		return nil, nil, err
	}
	filter := models.StatsReportFilter{HealthCenterID: query.HealthCenterID, Page: query.Page, PageSize: query.PageSize}
	if !actor.Can(s.policy, OpStatsReadAll) {
		if query.HealthCenterID != "" && query.HealthCenterID != actor.HealthCenterID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "reports of other health centers are not visible")
		}
		if actor.HealthCenterID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "user is not assigned to a health center")
		}
		filter.HealthCenterID = actor.HealthCenterID
	}
	if query.PeriodKind != "" {
		kind := stats.PeriodKind(query.PeriodKind)
		if !kind.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown period kind")
		}
		filter.PeriodKind = kind
	}
	statuses, err := parseStatuses(query.Status)
	if err != nil {
		return nil, nil, err
	}
	filter.Statuses = statuses
	if filter.From, err = parseOptionalDate(query.From, s.loc); err != nil {
		return nil, nil, err
	}
	if filter.To, err = parseOptionalDate(query.To, s.loc); err != nil {
		return nil, nil, err
	}

	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list reports")
	}
	if reports == nil {
		reports = []models.StatsReport{}
	}
	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return reports, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Delete removes a report.
func (s *StatsReportService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := authorize(s.policy, actor, OpStatsDelete); err != nil {
		return err
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete report")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionStatsDelete, "stats_report", id)
	s.invalidate(ctx)
	return nil
}

// periodFor resolves the request period and fills the period columns of a new report.
func (s *StatsReportService) periodFor(req dto.SaveStatsReportRequest) (*models.StatsReport, error) {
	var q stats.PeriodQuery
	switch req.PeriodKind {
	case stats.PeriodDay:
		day, err := parseOptionalDate(req.Date, s.loc)
		if err != nil {
			return nil, err
		}
		if day == nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, "daily reports require a date")
		}
		q.Day = day
	case stats.PeriodMonth:
		q.Month, q.Year = req.Month, req.Year
	case stats.PeriodWeek:
		if req.Week == 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, "weekly reports require a week and year")
		}
		q.Week, q.Year = req.Week, req.Year
	}
	r, err := q.Resolve(s.loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidPeriod.Code, appErrors.ErrInvalidPeriod.Status, err.Error())
	}

	report := &models.StatsReport{PeriodKind: r.Kind, PeriodStart: r.Start}
	switch r.Kind {
	case stats.PeriodWeek:
		week := req.Week
		report.Week = &week
		report.Year = req.Year
	default:
		month := int(r.Start.Month())
		report.Month = &month
		report.Year = r.Start.Year()
	}
	return report, nil
}

func (s *StatsReportService) targetCenter(actor Actor, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if actor.Can(s.policy, OpStatsReadAll) {
		if requested == "" {
			requested = actor.HealthCenterID
		}
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "healthCenterId is required")
		}
		return requested, nil
	}
	if actor.HealthCenterID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "user is not assigned to a health center")
	}
	if requested != "" && requested != actor.HealthCenterID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "cannot report for another health center")
	}
	return actor.HealthCenterID, nil
}

func (s *StatsReportService) submitted(ctx context.Context, actor Actor, report *models.StatsReport, center *models.HealthCenter) {
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionStatsSubmit, "stats_report", report.ID)
	if center == nil || center.ManagerID == nil || *center.ManagerID == actor.ID {
		return
	}
	message := fmt.Sprintf("%s submitted its %s report starting %s.", center.Name, report.PeriodKind, report.PeriodStart.In(s.loc).Format(dateLayout))
	s.notifications.Notify(ctx, *center.ManagerID, models.NotificationInfo, "Report submitted", message, reportLink(report.ID))
}

func (s *StatsReportService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, consolidationCachePattern); err != nil {
		s.logger.Warn("failed to invalidate consolidation cache", zap.Error(err))
	}
}

func (s *StatsReportService) load(ctx context.Context, id string) (*models.StatsReport, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, internalError(err, "failed to load report")
	}
	return report, nil
}

func (s *StatsReportService) loadScoped(ctx context.Context, actor Actor, id string) (*models.StatsReport, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Can(s.policy, OpStatsReadAll) && report.HealthCenterID != actor.HealthCenterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another health center")
	}
	return report, nil
}

func (s *StatsReportService) loadCenter(ctx context.Context, id string) (*models.HealthCenter, error) {
	center, err := s.centers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "health center not found")
		}
		return nil, internalError(err, "failed to load health center")
	}
	return center, nil
}

func reportLink(id string) *string {
	link := "/stats/reports/" + id
	return &link
}

// validationFromStats converts aggregation library errors into API errors.
func validationFromStats(err error) error {
	var vErr *stats.ValidationError
	if errors.As(err, &vErr) {
		return invalidInput(err, vErr.Error())
	}
	if errors.Is(err, stats.ErrInvalidPeriod) {
		return appErrors.Wrap(err, appErrors.ErrInvalidPeriod.Code, appErrors.ErrInvalidPeriod.Status, err.Error())
	}
	return invalidInput(err, "invalid report data")
}

func parseStatuses(raw []string) ([]stats.Status, error) {
	var out []stats.Status
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status := stats.Status(part)
			if !status.Valid() {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", part))
			}
			out = append(out, status)
		}
	}
	return out, nil
}

func parseOptionalDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return &t, nil
}
