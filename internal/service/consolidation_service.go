package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

const (
	consolidationCachePrefix  = "stats:consolidated:"
	consolidationCachePattern = consolidationCachePrefix + "*"
)

type aggregationSource interface {
	ListForAggregation(ctx context.Context, filter models.StatsReportFilter) ([]models.StatsReport, error)
	Coverage(ctx context.Context, year int, statuses []stats.Status) ([]models.CenterCoverage, error)
}

type activeCenterCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type registrySnapshotter interface {
	Snapshot(ctx context.Context) (*stats.Registry, error)
}

// DefaultHighlights are the call-outs shown next to every consolidated report.
var DefaultHighlights = []stats.Highlight{
	{
		Key:   "vaccination",
		Label: "Vaccination activities",
		Field: stats.FieldAll,
		Match: func(t stats.Topic, _ stats.Category) bool {
			name := strings.ToLower(t.Name)
			return strings.Contains(name, "vaccin") || strings.Contains(name, "immuniz")
		},
	},
	{
		Key:   "maternalChildLectures",
		Label: "Maternal and child health lectures",
		Field: stats.FieldLectures,
		Match: func(_ stats.Topic, c stats.Category) bool { return c.ID == "maternalChildHealth" },
	},
	{
		Key:   "healthEvents",
		Label: "Health events",
		Field: stats.FieldHealthEvents,
	},
}

// ConsolidationService builds period-wide aggregates across health centers.
type ConsolidationService struct {
	reports    aggregationSource
	centers    activeCenterCounter
	registry   registrySnapshotter
	cache      *CacheService
	metrics    *MetricsService
	policy     Policy
	highlights []stats.Highlight
	cacheTTL   time.Duration
	logger     *zap.Logger
	loc        *time.Location
	now        func() time.Time
}

// ConsolidationServiceConfig groups the collaborators of ConsolidationService.
type ConsolidationServiceConfig struct {
	Reports    aggregationSource
	Centers    activeCenterCounter
	Registry   registrySnapshotter
	Cache      *CacheService
	Metrics    *MetricsService
	Policy     Policy
	Highlights []stats.Highlight
	CacheTTL   time.Duration
	Logger     *zap.Logger
	Location   *time.Location
}

// NewConsolidationService constructs the service.
func NewConsolidationService(cfg ConsolidationServiceConfig) *ConsolidationService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Highlights == nil {
		cfg.Highlights = DefaultHighlights
	}
	return &ConsolidationService{
		reports:    cfg.Reports,
		centers:    cfg.Centers,
		registry:   cfg.Registry,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		policy:     cfg.Policy,
		highlights: cfg.Highlights,
		cacheTTL:   cfg.CacheTTL,
		logger:     cfg.Logger,
		loc:        cfg.Location,
		now:        time.Now,
	}
}

// consolidationRequest is a validated ConsolidatedQuery.
type consolidationRequest struct {
	period          stats.Range
	kind            stats.PeriodKind
	statuses        []stats.Status
	centerID        string
	includeInactive bool
}

func (r consolidationRequest) cacheKey() string {
	parts := make([]string, len(r.statuses))
	for i, s := range r.statuses {
		parts[i] = string(s)
	}
	center := r.centerID
	if center == "" {
		center = "all"
	}
	return fmt.Sprintf("%s%s:%s:%s:%s:%t", consolidationCachePrefix, r.kind, r.period.Label(), strings.Join(parts, ","), center, r.includeInactive)
}

// Consolidate merges every qualifying report of the requested period and
// reports whether the result came from the cache. Users without the
// consolidate permission only see their own center.
func (s *ConsolidationService) Consolidate(ctx context.Context, actor Actor, query dto.ConsolidatedQuery) (*dto.ConsolidatedResponse, bool, error) {
	req, err := s.resolve(actor, query)
	if err != nil {
		return nil, false, err
	}

	return cachedFetch(ctx, s.cache, req.cacheKey(), s.cacheTTL, func() (*dto.ConsolidatedResponse, error) {
		return s.consolidate(ctx, req)
	})
}

func (s *ConsolidationService) consolidate(ctx context.Context, req consolidationRequest) (*dto.ConsolidatedResponse, error) {
	start := time.Now()
	rows, err := s.reports.ListForAggregation(ctx, models.StatsReportFilter{
		HealthCenterID: req.centerID,
		PeriodKind:     req.kind,
		Statuses:       req.statuses,
		From:           &req.period.Start,
		To:             &req.period.End,
	})
	if err != nil {
		return nil, internalError(err, "failed to load reports")
	}
	reg, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]stats.Report, len(rows))
	for i, row := range rows {
		candidates[i] = row.ToStatsReport()
	}
	consolidated := stats.ConsolidateRange(candidates, req.period, req.statuses)
	summary := stats.Rollup(consolidated.Consolidated, reg)
	if !req.includeInactive {
		summary = summary.Visible()
	}

	resp := &dto.ConsolidatedResponse{
		Period:       consolidated.Period,
		Label:        consolidated.Period.Label(),
		Statuses:     req.statuses,
		TotalCenters: consolidated.TotalCenters,
		TotalReports: consolidated.TotalReports,
		Consolidated: consolidated.Consolidated,
		Summary:      &summary,
		Highlights:   stats.EvaluateHighlights(consolidated.Consolidated, reg, s.highlights),
		GeneratedAt:  s.now().UTC(),
	}
	s.metrics.RecordConsolidation(consolidated.TotalReports, time.Since(start))
	s.logger.Debug("consolidated period",
		zap.String("period", resp.Label),
		zap.String("kind", string(req.kind)),
		zap.Int("candidates", len(rows)),
		zap.Int("reports", resp.TotalReports),
		zap.Int("centers", resp.TotalCenters),
	)

	return resp, nil
}

// Coverage reports, per month of year, how many active centers have reports in
// the given statuses. Only day and month reports carry a month.
func (s *ConsolidationService) Coverage(ctx context.Context, actor Actor, year int, rawStatuses []string) (*dto.CoverageResponse, error) {
	if err := authorize(s.policy, actor, OpStatsConsolidate); err != nil {
		return nil, err
	}
	if year <= 0 {
		year = s.now().In(s.loc).Year()
	}
	statuses, err := parseStatuses(rawStatuses)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = []stats.Status{stats.StatusSubmitted, stats.StatusReviewed, stats.StatusApproved}
	}

	active, err := s.centers.CountActive(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count health centers")
	}
	rows, err := s.reports.Coverage(ctx, year, statuses)
	if err != nil {
		return nil, internalError(err, "failed to load coverage")
	}

	byMonth := make(map[int]models.CenterCoverage, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row
	}
	resp := &dto.CoverageResponse{Year: year, ActiveCenters: active, Months: make([]dto.CoverageMonth, 0, 12)}
	for month := 1; month <= 12; month++ {
		row := byMonth[month]
		entry := dto.CoverageMonth{Month: month, ReportingCenters: row.ReportingCenters, Reports: row.Reports}
		if active > 0 {
			entry.Rate = float64(row.ReportingCenters) / float64(active)
		}
		resp.Months = append(resp.Months, entry)
	}
	return resp, nil
}

func (s *ConsolidationService) resolve(actor Actor, query dto.ConsolidatedQuery) (consolidationRequest, error) {
	if err := authorize(s.policy, actor, OpStatsRead); err != nil {
		return consolidationRequest{}, err
	}
	req := consolidationRequest{centerID: strings.TrimSpace(query.HealthCenterID), includeInactive: query.IncludeInactive}
	if !actor.Can(s.policy, OpStatsConsolidate) {
		if actor.HealthCenterID == "" {
			return req, appErrors.Clone(appErrors.ErrForbidden, "user is not assigned to a health center")
		}
		if req.centerID != "" && req.centerID != actor.HealthCenterID {
			return req, appErrors.Clone(appErrors.ErrForbidden, "cannot consolidate another health center")
		}
		req.centerID = actor.HealthCenterID
	}

	req.kind = stats.PeriodDay
	if query.Kind != "" {
		req.kind = stats.PeriodKind(strings.ToLower(query.Kind))
		if !req.kind.Valid() {
			return req, appErrors.Clone(appErrors.ErrValidation, "unknown period kind")
		}
	}

	var pq stats.PeriodQuery
	day, err := parseOptionalDate(query.Date, s.loc)
	if err != nil {
		return req, err
	}
	pq.Day, pq.Week, pq.Month, pq.Year = day, query.Week, query.Month, query.Year
	if req.period, err = pq.Resolve(s.loc); err != nil {
		return req, validationFromStats(err)
	}

	if req.statuses, err = parseStatuses(query.Status); err != nil {
		return req, err
	}
	if len(req.statuses) == 0 {
		req.statuses = append([]stats.Status(nil), stats.DefaultAcceptable...)
	}
	return req, nil
}
