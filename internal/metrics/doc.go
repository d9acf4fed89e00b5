// Package metrics declares the Prometheus collectors exported by the
// sensitive-content scanner.
//
// Collectors are grouped by subsystem (HTTP, catalog, scan, classifier,
// fetcher, database, preview, auth) and registered with the default
// registry via promauto at package initialization. They are served on
// the /metrics endpoint of the main HTTP server.
package metrics
