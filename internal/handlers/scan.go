package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"sensitive-scanner/internal/background"
	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/scan"
)

// ScanRequest optionally overrides the configured scan defaults. Absent
// fields fall back to the server's configuration.
type ScanRequest struct {
	Concurrent    *bool `json:"concurrent"`
	AllowNetwork  *bool `json:"allowNetwork"`
	IncludeVideos *bool `json:"includeVideos"`
}

// ScanStatusResponse is the observable scan state plus result counts.
type ScanStatusResponse struct {
	Running        bool      `json:"running"`
	Cancelled      bool      `json:"cancelled"`
	Total          int       `json:"total"`
	Processed      int       `json:"processed"`
	Progress       float64   `json:"progress"`
	Percent        int       `json:"percent"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	TotalResults   int       `json:"totalResults"`
}

// StartScan starts a new scan session, cancelling any session already
// running. Returns 409 with a distinct error code when the classifier
// policy is disabled so the client can prompt the user to enable it.
func (h *Handlers) StartScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts := h.scanDefaults
	if req.Concurrent != nil {
		opts.Concurrent = *req.Concurrent
	}
	if req.AllowNetwork != nil {
		opts.AllowNetwork = *req.AllowNetwork
	}
	if req.IncludeVideos != nil {
		opts.IncludeVideos = *req.IncludeVideos
	}

	// The whole sequence runs under one lock: a concurrent start must
	// not install its budget between this request's session creation
	// and the bookkeeping below, or the sessions' ticks and completion
	// reports would land on the wrong budget.
	h.sessMu.Lock()
	defer h.sessMu.Unlock()

	// Conclude any prior session before installing the new budget so the
	// old session's completion cannot consume it.
	if prev := h.lastSession; prev != nil {
		prev.Cancel()
		prev.Wait()
	}

	var budget background.Budget = background.Unlimited{}
	if h.budgetLimit > 0 {
		budget = background.NewTimeBudget(h.budgetLimit, h.scanner.Cancel)
	}
	h.setBudget(budget)

	// Budget registration precedes the scan itself; the count is a
	// best-effort estimate refined by the session's own total.
	if total, err := h.catalog.Count(ctx, opts.IncludeVideos); err == nil {
		budget.Begin(int64(total))
	} else {
		budget.Begin(0)
	}

	sess, err := h.scanner.Start(ctx, opts)
	if err != nil {
		budget.Finish(false)
		h.setBudget(nil)

		if errors.Is(err, scan.ErrPolicyDisabled) {
			writeJSONError(w, "policy_disabled", http.StatusConflict)
			return
		}
		logging.Error("Failed to start scan: %v", err)
		writeJSONError(w, "Failed to start scan", http.StatusInternalServerError)
		return
	}

	h.lastSession = sess

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{
		"status": "started",
		"total":  sess.Total(),
	})
}

// CancelScan requests cooperative cancellation of the active session.
// Idempotent: cancelling with no scan running is a no-op.
func (h *Handlers) CancelScan(w http.ResponseWriter, _ *http.Request) {
	h.scanner.Cancel()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// ScanStatus reports the current scan state.
func (h *Handlers) ScanStatus(w http.ResponseWriter, _ *http.Request) {
	state := h.scanner.State()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ScanStatusResponse{
		Running:        state.Running,
		Cancelled:      state.Cancelled,
		Total:          state.Total,
		Processed:      state.Processed,
		Progress:       state.Progress,
		Percent:        state.PercentRounded(),
		StartedAt:      state.StartedAt,
		ElapsedSeconds: state.Elapsed.Seconds(),
		TotalResults:   h.scanner.Results().TotalResults(),
	})
}

// ResetScan clears accumulated results and cached previews. Distinct
// from starting a scan, which performs its own reset.
func (h *Handlers) ResetScan(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.State().Running {
		writeJSONError(w, "Scan in progress, cancel it first", http.StatusConflict)
		return
	}

	h.scanner.Results().Reset()
	h.previews.Reset()

	writeJSONStatus(w, "reset")
}

