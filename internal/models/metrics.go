package models

import "time"

// SystemMetrics is a point-in-time summary of process instrumentation.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	Consolidations           uint64            `json:"consolidations"`
	ReportsAggregated        uint64            `json:"reports_aggregated"`
	ReportTransitions        map[string]uint64 `json:"report_transitions"`
	ExportsFinished          uint64            `json:"exports_finished"`
	ExportsFailed            uint64            `json:"exports_failed"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
