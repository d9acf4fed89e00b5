package handlers

import (
	"net/http"
	"runtime"
	"time"

	"sensitive-scanner/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status              string `json:"status"`
	Ready               bool   `json:"ready"`
	Version             string `json:"version"`
	Refreshing          bool   `json:"refreshing"`
	LastRefreshed       string `json:"lastRefreshed,omitempty"`
	InitialRefreshError string `json:"initialRefreshError,omitempty"`

	// Catalog summary
	TotalAssets int `json:"totalAssets,omitempty"`

	// Scan summary
	ScanRunning bool `json:"scanRunning"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.catalog.IsReady()

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Refreshing:   h.catalog.IsRefreshing(),
		ScanRunning:  h.scanner.State().Running,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if last := h.catalog.LastRefreshTime(); !last.IsZero() {
		response.LastRefreshed = last.Format(time.RFC3339)
	}

	if err := h.catalog.InitialError(); err != nil {
		response.InitialRefreshError = err.Error()
		response.Status = statusDegraded
	}

	if total, err := h.catalog.Count(r.Context(), true); err == nil {
		response.TotalAssets = total
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.catalog.IsReady() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
