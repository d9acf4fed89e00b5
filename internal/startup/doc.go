// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - LIBRARY_DIR: Path to the media library (default: /library)
//   - CACHE_DIR: Path to cache directory for result previews (default: /cache)
//   - DATABASE_DIR: Path to catalog database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - REFRESH_INTERVAL: Full catalog refresh interval as Go duration (default: 30m)
//   - CLASSIFIER_URL: Base URL of the sensitivity-analysis sidecar
//   - CLASSIFIER_STICKY_UNAVAILABLE: Latch classifier unavailability for a
//     client's lifetime instead of re-probing per call (default: false)
//   - REMOTE_ORIGINALS_URL: Base URL for fetching non-resident originals
//     (unset disables cloud originals)
//   - SCAN_CONCURRENT / SCAN_ALLOW_NETWORK / SCAN_INCLUDE_VIDEOS: default
//     scan options, overridable per scan request
//   - SCAN_BUDGET: wall-clock budget per scan as Go duration (0 = unlimited)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Build-time variables are injected via ldflags and exposed via
// [GetBuildInfo]: Version, Commit, BuildTime.
package startup
