package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"sensitive-scanner/internal/background"
	"sensitive-scanner/internal/catalog"
	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/fetcher"
	"sensitive-scanner/internal/scan"
	"sensitive-scanner/internal/startup"
)

// stubClassifier gives handler tests full control over verdicts without
// a sidecar process.
type stubClassifier struct {
	policy   bool
	positive bool
	delay    time.Duration
}

func (c *stubClassifier) ClassifyImage(ctx context.Context, _ image.Image) (bool, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return c.positive, nil
}

func (c *stubClassifier) ClassifyVideo(ctx context.Context, _ string) (bool, error) {
	return c.positive, nil
}

func (c *stubClassifier) PolicyEnabled(_ context.Context) bool {
	return c.policy
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// newTestHandlers builds a handler set on real database, catalog and
// fetcher instances, seeded with imageCount library images.
func newTestHandlers(t *testing.T, classifier *stubClassifier, imageCount int) *Handlers {
	t.Helper()

	ctx := context.Background()
	libDir := t.TempDir()
	cacheDir := t.TempDir()

	for i := 0; i < imageCount; i++ {
		writePNG(t, filepath.Join(libDir, "photo-"+string(rune('a'+i))+".png"), 16, 16)
	}

	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.New(db, libDir, time.Hour)
	if err := cat.Refresh(ctx); err != nil {
		t.Fatalf("catalog refresh: %v", err)
	}

	scanner := scan.NewScanner(cat, fetcher.New(libDir), classifier, 4)

	config := &startup.Config{
		PreviewDir:      filepath.Join(cacheDir, "previews"),
		PreviewsEnabled: true,
		ScanConcurrent:  true,
	}

	return New(db, cat, scanner, config)
}

func runScanToCompletion(t *testing.T, h *Handlers) {
	t.Helper()

	rr := httptest.NewRecorder()
	h.StartScan(rr, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("StartScan status = %d, want %d (body %q)", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	h.sessMu.Lock()
	sess := h.lastSession
	h.sessMu.Unlock()
	if sess == nil {
		t.Fatal("no session recorded after StartScan")
	}
	sess.Wait()
}

func TestScanStatusIdle(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)

	rr := httptest.NewRecorder()
	h.ScanStatus(rr, httptest.NewRequest(http.MethodGet, "/api/scan/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp ScanStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Running {
		t.Error("idle scanner reported running")
	}
	if resp.TotalResults != 0 {
		t.Errorf("TotalResults = %d, want 0", resp.TotalResults)
	}
}

func TestStartScanFlagsEverything(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true, positive: true}, 3)
	runScanToCompletion(t, h)

	rr := httptest.NewRecorder()
	h.ScanStatus(rr, httptest.NewRequest(http.MethodGet, "/api/scan/status", nil))

	var status ScanStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Running {
		t.Error("scan still reported running after Wait")
	}
	if status.Processed != 3 || status.Total != 3 {
		t.Errorf("processed/total = %d/%d, want 3/3", status.Processed, status.Total)
	}
	if status.Percent != 100 {
		t.Errorf("percent = %d, want 100", status.Percent)
	}
	if status.TotalResults != 3 {
		t.Errorf("TotalResults = %d, want 3", status.TotalResults)
	}
}

func TestStartScanPolicyDisabled(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: false}, 2)

	rr := httptest.NewRecorder()
	h.StartScan(rr, httptest.NewRequest(http.MethodPost, "/api/scan", nil))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "policy_disabled" {
		t.Errorf("error = %q, want policy_disabled", body["error"])
	}
}

func TestStartScanBodyOverrides(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)

	body := bytes.NewBufferString(`{"concurrent": false, "includeVideos": false}`)
	rr := httptest.NewRecorder()
	h.StartScan(rr, httptest.NewRequest(http.MethodPost, "/api/scan", body))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %q)", rr.Code, rr.Body.String())
	}

	h.sessMu.Lock()
	sess := h.lastSession
	h.sessMu.Unlock()
	sess.Wait()
}

func TestStartScanRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)

	rr := httptest.NewRecorder()
	h.StartScan(rr, httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewBufferString("{nope")))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCancelScanWithoutScan(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)

	rr := httptest.NewRecorder()
	h.CancelScan(rr, httptest.NewRequest(http.MethodDelete, "/api/scan", nil))

	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rr.Code)
	}
}

func TestResetScanWhileRunning(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true, delay: 200 * time.Millisecond}, 4)

	rr := httptest.NewRecorder()
	h.StartScan(rr, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("StartScan status = %d, want 202", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ResetScan(rr, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	if rr.Code != http.StatusConflict {
		t.Errorf("reset during scan status = %d, want 409", rr.Code)
	}

	h.scanner.Cancel()
	h.sessMu.Lock()
	sess := h.lastSession
	h.sessMu.Unlock()
	sess.Wait()
}

func TestResetScanClearsResults(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true, positive: true}, 2)
	runScanToCompletion(t, h)

	if h.scanner.Results().TotalResults() != 2 {
		t.Fatalf("expected 2 results before reset")
	}

	rr := httptest.NewRecorder()
	h.ResetScan(rr, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200", rr.Code)
	}

	if got := h.scanner.Results().TotalResults(); got != 0 {
		t.Errorf("results after reset = %d, want 0", got)
	}
}

func newResultsRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/results", h.ListResults).Methods(http.MethodGet)
	router.HandleFunc("/api/results/{id}", h.DeleteResult).Methods(http.MethodDelete)
	router.HandleFunc("/api/results/{id}/image", h.ResultImage).Methods(http.MethodGet)
	router.HandleFunc("/api/results/{id}/thumbnail", h.ResultThumbnail).Methods(http.MethodGet)
	return router
}

func TestResultsLifecycle(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true, positive: true}, 2)
	runScanToCompletion(t, h)
	router := newResultsRouter(h)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rr.Code)
	}

	var list ResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Total)
	}
	for _, entry := range list.Results {
		if entry.Kind != "image" {
			t.Errorf("kind = %q, want image", entry.Kind)
		}
		if !entry.Deletable {
			t.Errorf("image result %s not deletable", entry.ID)
		}
	}

	// Full-resolution frame is served as PNG.
	id := list.Results[0].ID
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results/"+id+"/image", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("image status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if _, err := png.Decode(bytes.NewReader(rr.Body.Bytes())); err != nil {
		t.Errorf("served frame is not a decodable PNG: %v", err)
	}

	// Thumbnail comes back as JPEG.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results/"+id+"/thumbnail", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("thumbnail status = %d, want 200 (body %q)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}

	// Deleting removes the asset and drops the result.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/results/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rr.Code)
	}
	if got := h.scanner.Results().TotalResults(); got != 1 {
		t.Errorf("results after delete = %d, want 1", got)
	}

	// A second delete of the same id is gone.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/results/"+id, nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", rr.Code)
	}
}

func TestStartScanConcurrentRequestsBindBudgetToSurvivor(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true, delay: 20 * time.Millisecond}, 4)
	h.budgetLimit = time.Minute

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			h.StartScan(rr, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
			if rr.Code != http.StatusAccepted {
				t.Errorf("StartScan status = %d, want 202 (body %q)", rr.Code, rr.Body.String())
			}
		}()
	}
	wg.Wait()

	h.sessMu.Lock()
	sess := h.lastSession
	h.sessMu.Unlock()
	if sess == nil {
		t.Fatal("no session recorded after concurrent starts")
	}
	sess.Wait()

	// The surviving session must run under its own budget: prior ticks
	// and the prior session's completion report belong to the budget it
	// started with, never to the replacement.
	budget, ok := h.currentBudget().(*background.TimeBudget)
	if !ok {
		t.Fatalf("active budget is %T, want *background.TimeBudget", h.currentBudget())
	}
	if budget.Expired() {
		t.Error("surviving session's budget reported expired")
	}
	if got, want := budget.Completed(), int64(sess.State().Processed); got != want {
		t.Errorf("budget units = %d, want %d (only the surviving session feeds the active budget)", got, want)
	}
}

func TestDeleteResultFailureLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true, positive: true}, 2)
	runScanToCompletion(t, h)
	router := newResultsRouter(h)
	store := h.scanner.Results()

	images := store.Images()
	if len(images) != 2 {
		t.Fatalf("expected 2 flagged images, got %d", len(images))
	}
	id := images[0].ID

	// Drop the catalog row behind the handler's back so the delegated
	// deletion fails before touching the result set.
	if err := h.db.DeleteAsset(context.Background(), id); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/results/"+id, nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("delete status = %d, want 500", rr.Code)
	}

	if got := store.TotalResults(); got != 2 {
		t.Errorf("results after failed delete = %d, want 2", got)
	}
	if _, ok := store.ImageByID(id); !ok {
		t.Error("entry dropped from result store despite failed deletion")
	}
}

func TestResultEndpointsUnknownID(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)
	router := newResultsRouter(h)

	for _, path := range []string{
		"/api/results/nope/image",
		"/api/results/nope/thumbnail",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/results/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("delete unknown status = %d, want 404", rr.Code)
	}
}

func TestHealthCheckStates(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != statusHealthy {
		t.Errorf("status = %q, want %q", resp.Status, statusHealthy)
	}
	if !resp.Ready {
		t.Error("expected ready after refresh")
	}
	if resp.TotalAssets != 1 {
		t.Errorf("totalAssets = %d, want 1", resp.TotalAssets)
	}
}

func TestReadinessAndLiveness(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)

	rr := httptest.NewRecorder()
	h.ReadinessCheck(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("readiness status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.LivenessCheck(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.LivenessCheck(rr, httptest.NewRequest(http.MethodHead, "/livez", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("HEAD liveness status = %d, want 200", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Error("HEAD liveness should not have a body")
	}
}

func TestGetVersion(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &stubClassifier{policy: true}, 1)

	rr := httptest.NewRecorder()
	h.GetVersion(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("version status = %d, want 200", rr.Code)
	}

	var info startup.BuildInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info.Version == "" {
		t.Error("version is empty")
	}
}
