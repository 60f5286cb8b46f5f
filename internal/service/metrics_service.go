package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

const metricsNamespace = "health_campaign"

// MetricsService owns the process Prometheus registry and keeps running
// totals for the JSON summary endpoint.
type MetricsService struct {
	handler http.Handler

	httpDuration   *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	cacheLatency   prometheus.Histogram
	cacheWrites    prometheus.Histogram
	consolidations prometheus.Counter
	reportsMerged  prometheus.Counter
	consolidateDur prometheus.Histogram
	transitions    *prometheus.CounterVec
	exportJobs     *prometheus.CounterVec

	mu    sync.Mutex
	tally metricsTally
}

type metricsTally struct {
	requests       uint64
	requestNanos   uint64
	cacheHits      uint64
	cacheMisses    uint64
	consolidations uint64
	reportsMerged  uint64
	exportsDone    uint64
	exportsFailed  uint64
	transitions    map[string]uint64
}

// NewMetricsService builds a service with a fresh registry, so tests can
// create as many as they need.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &MetricsService{
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Consolidation cache lookups by result.",
		}, []string{"result"}),
		cacheLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookup_seconds",
			Help:      "Latency of consolidation cache lookups.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		cacheWrites: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_write_seconds",
			Help:      "Latency of consolidation cache writes.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		consolidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "consolidations_total",
			Help:      "Consolidated periods computed from the database.",
		}),
		reportsMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reports_aggregated_total",
			Help:      "Health center reports merged into consolidations.",
		}),
		consolidateDur: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "consolidation_duration_seconds",
			Help:      "Time spent loading and merging one period.",
			Buckets:   prometheus.DefBuckets,
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "report_transitions_total",
			Help:      "Statistics report status changes by target status.",
		}, []string{"status"}),
		exportJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "export_jobs_total",
			Help:      "Export jobs by format and final status.",
		}, []string{"format", "status"}),
		tally: metricsTally{transitions: map[string]uint64{}},
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Number of live goroutines.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
	m.update(func(t *metricsTally) {
		t.requests++
		t.requestNanos += uint64(duration.Nanoseconds())
	})
}

// RecordCacheOperation records a cache lookup and whether it hit.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.Observe(duration.Seconds())
	m.update(func(t *metricsTally) {
		if hit {
			t.cacheHits++
		} else {
			t.cacheMisses++
		}
	})
}

// ObserveCacheWrite records the latency of a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// RecordConsolidation counts one consolidation over the given number of reports.
func (m *MetricsService) RecordConsolidation(reports int, duration time.Duration) {
	if m == nil {
		return
	}
	m.consolidations.Inc()
	m.reportsMerged.Add(float64(reports))
	m.consolidateDur.Observe(duration.Seconds())
	m.update(func(t *metricsTally) {
		t.consolidations++
		t.reportsMerged += uint64(reports)
	})
}

// RecordReportTransition counts a report moving into status.
func (m *MetricsService) RecordReportTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
	m.update(func(t *metricsTally) { t.transitions[status]++ })
}

// RecordExportJob counts an export job that reached a final status.
func (m *MetricsService) RecordExportJob(format, status string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(format, status).Inc()
	m.update(func(t *metricsTally) {
		if status == string(models.ReportStatusFinished) {
			t.exportsDone++
		} else {
			t.exportsFailed++
		}
	})
}

// Snapshot returns the running totals.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	snap := models.SystemMetrics{Goroutines: runtime.NumGoroutine(), GeneratedAt: time.Now().UTC()}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	t := m.tally
	transitions := make(map[string]uint64, len(t.transitions))
	for k, v := range t.transitions {
		transitions[k] = v
	}
	m.mu.Unlock()

	snap.RequestsTotal = t.requests
	if t.requests > 0 {
		snap.AverageRequestDurationMs = float64(t.requestNanos) / float64(t.requests) / float64(time.Millisecond)
	}
	snap.CacheHits = t.cacheHits
	snap.CacheMisses = t.cacheMisses
	if lookups := t.cacheHits + t.cacheMisses; lookups > 0 {
		snap.CacheHitRatio = float64(t.cacheHits) / float64(lookups)
	}
	snap.Consolidations = t.consolidations
	snap.ReportsAggregated = t.reportsMerged
	snap.ExportsFinished = t.exportsDone
	snap.ExportsFailed = t.exportsFailed
	snap.ReportTransitions = transitions
	return snap
}

func (m *MetricsService) update(fn func(*metricsTally)) {
	m.mu.Lock()
	fn(&m.tally)
	m.mu.Unlock()
}
