package service

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
	"github.com/noah-isme/health-campaign-api/pkg/storage"
)

type consolidatorStub struct {
	queries []dto.ConsolidatedQuery
	actors  []Actor
	err     error
}

func (c *consolidatorStub) Consolidate(ctx context.Context, actor Actor, query dto.ConsolidatedQuery) (*dto.ConsolidatedResponse, bool, error) {
	c.queries = append(c.queries, query)
	c.actors = append(c.actors, actor)
	if c.err != nil {
		return nil, false, c.err
	}
	agg := stats.TopicMap{
		"maternalChildHealth.pregnancyCareVisits": {Lectures: 3, HealthEvents: 1},
		"legacy.topic":                            {Seminars: 2},
	}
	summary := stats.Rollup(agg, consolidationRegistry())
	return &dto.ConsolidatedResponse{
		Label:        "2024-05",
		TotalCenters: 2,
		TotalReports: 3,
		Consolidated: agg,
		Summary:      &summary,
		GeneratedAt:  time.Now(),
	}, false, nil
}

func newExportServiceForTest(t *testing.T, source consolidator) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	return NewExportService(source, store, signer, cfg, zap.NewNop()), store
}

func TestExportServiceGenerateCSV(t *testing.T) {
	source := &consolidatorStub{}
	svc, store := newExportServiceForTest(t, source)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeConsolidated,
		Params:    models.ReportJobParams{Month: 5, Year: 2024, Format: models.ReportFormatCSV, Language: "en"},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Contains(t, result.URL, "/api/v1/export/")
	require.True(t, strings.HasPrefix(result.RelativePath, "consolidated_2024-05_all_"))
	require.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	require.Len(t, source.queries, 1)
	require.Equal(t, 5, source.queries[0].Month)
	require.Equal(t, exportActor, source.actors[0])

	file, err := os.Open(filepath.Join(store.Root(), result.RelativePath))
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Total", "0", "3", "2", "1"}, rows[len(rows)-1])
}

func TestExportServiceGeneratePDFAndXLSX(t *testing.T) {
	svc, store := newExportServiceForTest(t, &consolidatorStub{})
	for _, format := range []models.ReportFormat{models.ReportFormatPDF, models.ReportFormatXLSX} {
		job := &models.ReportJob{
			ID:        "job-" + string(format),
			Type:      models.ReportTypeCenter,
			Params:    models.ReportJobParams{Week: 22, Year: 2024, HealthCenterID: "hc-1", Format: format},
			CreatedBy: "admin",
		}
		result, err := svc.Generate(context.Background(), job)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(result.RelativePath, "center_2024-W22_hc-1_"))
		info, err := os.Stat(filepath.Join(store.Root(), result.RelativePath))
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
}

func TestExportServiceGenerateErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &consolidatorStub{})
	_, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-x",
		Type:   models.ReportTypeCenter,
		Params: models.ReportJobParams{Date: "2024-05-31", Format: models.ReportFormatCSV},
	})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-y",
		Type:   models.ReportTypeConsolidated,
		Params: models.ReportJobParams{Date: "2024-05-31", Format: "docx"},
	})
	require.Error(t, err)

	failing, _ := newExportServiceForTest(t, &consolidatorStub{err: errors.New("db down")})
	_, err = failing.Generate(context.Background(), &models.ReportJob{
		ID:     "job-z",
		Type:   models.ReportTypeConsolidated,
		Params: models.ReportJobParams{Date: "2024-05-31", Format: models.ReportFormatCSV},
	})
	require.EqualError(t, err, "db down")
}

func TestExportServiceCleanup(t *testing.T) {
	svc, store := newExportServiceForTest(t, &consolidatorStub{})
	rel, err := store.Save("old.csv", []byte("a,b"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Root(), rel), past, past))

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	require.Equal(t, []string{"old.csv"}, removed)
}

func TestPeriodSlug(t *testing.T) {
	require.Equal(t, "2024-05-31", periodSlug(models.ReportJobParams{Date: "2024-05-31"}))
	require.Equal(t, "2024-05", periodSlug(models.ReportJobParams{Month: 5, Year: 2024}))
	require.Equal(t, "2024-W01", periodSlug(models.ReportJobParams{Week: 1, Year: 2024}))
	require.Equal(t, "na", periodSlug(models.ReportJobParams{}))
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "hc-1", sanitizeFilename("hc-1"))
	require.Equal(t, "-etc-passwd", sanitizeFilename("../etc/passwd"))
	require.Equal(t, "North-Clinic", sanitizeFilename("North Clinic"))
	require.Equal(t, "na", sanitizeFilename("..."))
	require.Len(t, sanitizeFilename(strings.Repeat("a", 150)), 100)
}
