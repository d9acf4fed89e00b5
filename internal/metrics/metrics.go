package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensitive_scanner_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog metrics
var (
	CatalogRefreshTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_catalog_refreshes_total",
			Help: "Total number of catalog refresh runs",
		},
	)

	CatalogRefreshDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_catalog_last_refresh_duration_seconds",
			Help: "Duration of the last catalog refresh in seconds",
		},
	)

	CatalogAssets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_catalog_assets",
			Help: "Number of assets currently in the catalog",
		},
		[]string{"kind"},
	)

	CatalogRefreshErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_catalog_refresh_errors_total",
			Help: "Total number of catalog refresh errors",
		},
	)

	CatalogWalkWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_catalog_walk_workers",
			Help: "Number of parallel workers used for catalog walks",
		},
	)

	CatalogWatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_catalog_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event"},
	)
)

// Scan metrics
var (
	ScanSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_scan_sessions_total",
			Help: "Total number of scan sessions by outcome",
		},
		[]string{"outcome"}, // "completed", "cancelled", "policy_disabled", "failed"
	)

	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_scan_running",
			Help: "Whether a scan session is currently running (1 or 0)",
		},
	)

	ScanAssetsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_scan_assets_processed_total",
			Help: "Total number of assets processed across all scan sessions",
		},
	)

	ScanSensitiveFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_scan_sensitive_found_total",
			Help: "Total number of assets classified as sensitive",
		},
		[]string{"kind"},
	)

	ScanWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_scan_workers",
			Help: "Concurrency level of the current scan session",
		},
	)

	ScanLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_scan_last_duration_seconds",
			Help: "Duration of the last completed scan session in seconds",
		},
	)
)

// Classifier metrics
var (
	ClassifierCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_classifier_calls_total",
			Help: "Total number of classifier invocations",
		},
		[]string{"kind", "result"}, // result: "positive", "negative", "unavailable", "error"
	)

	ClassifierCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensitive_scanner_classifier_call_duration_seconds",
			Help:    "Classifier invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)
)

// Fetcher metrics
var (
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_fetch_total",
			Help: "Total number of asset fetches",
		},
		[]string{"kind", "status"},
	)

	FetchRemoteBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_fetch_remote_bytes_total",
			Help: "Total bytes downloaded for non-resident originals",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensitive_scanner_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Preview metrics
var (
	PreviewGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_preview_generations_total",
			Help: "Total number of result preview generations",
		},
		[]string{"status"},
	)

	PreviewGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensitive_scanner_preview_generation_duration_seconds",
			Help:    "Result preview generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Auth metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"},
	)
)

// Background budget metrics
var (
	BudgetExpirationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_budget_expirations_total",
			Help: "Total number of scan sessions cancelled by the background execution budget",
		},
	)

	BudgetUnitsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_budget_units_completed_total",
			Help: "Total number of per-asset completion units reported to the background budget",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_memory_usage_ratio",
			Help: "Current heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensitive_scanner_memory_paused",
			Help: "Whether processing is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensitive_scanner_memory_gc_pauses_total",
			Help: "Total number of forced garbage collections triggered by memory pressure",
		},
	)
)
