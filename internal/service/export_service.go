package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/pkg/export"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
	"github.com/noah-isme/health-campaign-api/pkg/storage"
)

type consolidator interface {
	Consolidate(ctx context.Context, actor Actor, query dto.ConsolidatedQuery) (*dto.ConsolidatedResponse, bool, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders consolidated reports and persists the files.
type ExportService struct {
	consolidation consolidator
	storage       fileStorage
	renderers     map[models.ReportFormat]renderFunc
	signer        *storage.SignedURLSigner
	logger        *zap.Logger
	cfg           ExportConfig
	now           func() time.Time
}

type renderFunc func(data export.Dataset, title string) ([]byte, error)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type documentRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// exportActor runs queued jobs. Scope was enforced when the job was created and
// is carried in the job parameters.
var exportActor = Actor{ID: "export-worker", Role: models.RoleSuperAdmin}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewExportService constructs an ExportService.
func NewExportService(consolidation consolidator, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/"); cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	var csvOut csvRenderer = export.NewCSVExporter()
	var pdfOut, xlsxOut documentRenderer = export.NewPDFExporter(), export.NewXLSXExporter()
	return &ExportService{
		consolidation: consolidation,
		storage:       storage,
		renderers: map[models.ReportFormat]renderFunc{
			models.ReportFormatCSV:  func(d export.Dataset, _ string) ([]byte, error) { return csvOut.Render(d) },
			models.ReportFormatPDF:  pdfOut.Render,
			models.ReportFormatXLSX: xlsxOut.Render,
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Generate consolidates the job's period, renders it in the requested format
// and stores the file behind a signed download link.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, errors.New("export: nil job")
	}
	render, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("export: unsupported format %q", job.Params.Format)
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := render(dataset, title)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Params.Format, err)
	}

	relPath, err := s.storage.Save(s.filename(job), payload)
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, fmt.Errorf("sign export: %w", err)
	}

	s.logger.Info("export generated",
		zap.String("job_id", job.ID),
		zap.String("file", relPath),
		zap.Int("rows", len(dataset.Rows)),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          path.Join(s.cfg.APIPrefix, "export", token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or older than ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// filename is <type>_<period>_<scope>_<utc timestamp>.<format>.
func (s *ExportService) filename(job *models.ReportJob) string {
	scope := "all"
	if job.Params.HealthCenterID != "" {
		scope = sanitizeFilename(job.Params.HealthCenterID)
	}
	parts := []string{
		strings.ToLower(string(job.Type)),
		periodSlug(job.Params),
		scope,
		s.now().UTC().Format("20060102_150405"),
	}
	return strings.Join(parts, "_") + "." + string(job.Params.Format)
}

func periodSlug(p models.ReportJobParams) string {
	switch {
	case p.Date != "":
		return sanitizeFilename(p.Date)
	case p.Month != 0:
		return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
	case p.Week != 0:
		return fmt.Sprintf("%04d-W%02d", p.Year, p.Week)
	}
	return "na"
}

// sanitizeFilename keeps letters, digits, dot, dash and underscore, folding
// every other run into a dash. Leading dots are dropped.
func sanitizeFilename(raw string) string {
	clean := strings.TrimLeft(unsafeFilenameChars.ReplaceAllString(raw, "-"), ".")
	if len(clean) > 100 {
		clean = clean[:100]
	}
	if clean == "" {
		return "na"
	}
	return clean
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	params := job.Params
	switch job.Type {
	case models.ReportTypeConsolidated:
	case models.ReportTypeCenter:
		if params.HealthCenterID == "" {
			return export.Dataset{}, "", errors.New("center report requires a health center")
		}
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}

	resp, _, err := s.consolidation.Consolidate(ctx, exportActor, dto.ConsolidatedQuery{
		Date:           params.Date,
		Week:           params.Week,
		Month:          params.Month,
		Year:           params.Year,
		Status:         params.Statuses,
		HealthCenterID: params.HealthCenterID,
	})
	if err != nil {
		return export.Dataset{}, "", err
	}
	summary := stats.Summary{}
	if resp.Summary != nil {
		summary = *resp.Summary
	}

	title := fmt.Sprintf("Consolidated Report %s (%d centers, %d reports)", resp.Label, resp.TotalCenters, resp.TotalReports)
	if job.Type == models.ReportTypeCenter {
		title = fmt.Sprintf("Health Center Report %s (%d reports)", resp.Label, resp.TotalReports)
	}
	return export.SummaryDataset(summary, params.Language), title, nil
}
