package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sync/atomic"
	"time"

	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/metrics"
)

// ErrUnavailable is returned when the analysis sidecar cannot be reached
// or reports itself unready. Callers treat it as a negative verdict.
var ErrUnavailable = errors.New("sensitivity analysis unavailable")

// Classifier decides whether media content is sensitive. Implementations
// must be safe for concurrent use.
type Classifier interface {
	ClassifyImage(ctx context.Context, img image.Image) (bool, error)
	ClassifyVideo(ctx context.Context, path string) (bool, error)
	PolicyEnabled(ctx context.Context) bool
}

const defaultTimeout = 30 * time.Second

// Client talks to a local sensitivity-analysis sidecar over HTTP.
type Client struct {
	baseURL string
	client  *http.Client

	// When sticky is set, the first unavailable result latches and all
	// later calls short-circuit without touching the sidecar.
	sticky      bool
	latchedDown atomic.Bool
	downLogged  atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithStickyUnavailable makes the first unavailable result permanent for
// the client's lifetime instead of re-probing on every call.
func WithStickyUnavailable() Option {
	return func(c *Client) { c.sticky = true }
}

// WithTimeout overrides the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// NewClient creates a classifier backed by the sidecar at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verdictResponse struct {
	Sensitive bool `json:"sensitive"`
}

type policyResponse struct {
	Enabled bool `json:"enabled"`
}

// ClassifyImage submits a PNG-encoded frame for analysis.
func (c *Client) ClassifyImage(ctx context.Context, img image.Image) (bool, error) {
	if c.shortCircuit("image") {
		return false, ErrUnavailable
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		metrics.ClassifierCallsTotal.WithLabelValues("image", "error").Inc()
		return false, fmt.Errorf("failed to encode frame: %w", err)
	}

	return c.call(ctx, "image", c.baseURL+"/v1/classify/image", "image/png", bytes.NewReader(buf.Bytes()))
}

// ClassifyVideo submits a local video file path for analysis. The sidecar
// shares the filesystem and samples frames itself.
func (c *Client) ClassifyVideo(ctx context.Context, path string) (bool, error) {
	if c.shortCircuit("video") {
		return false, ErrUnavailable
	}

	body, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		metrics.ClassifierCallsTotal.WithLabelValues("video", "error").Inc()
		return false, fmt.Errorf("failed to encode request: %w", err)
	}

	return c.call(ctx, "video", c.baseURL+"/v1/classify/video", "application/json", bytes.NewReader(body))
}

// PolicyEnabled probes whether sensitivity analysis is switched on.
// Probe failures count as disabled.
func (c *Client) PolicyEnabled(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/policy", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logging.Warn("Policy probe failed: %v", err)
		return false
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn("failed to close policy response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		logging.Warn("Policy probe returned status %d", resp.StatusCode)
		return false
	}

	var policy policyResponse
	if err := json.NewDecoder(resp.Body).Decode(&policy); err != nil {
		logging.Warn("Policy probe returned malformed response: %v", err)
		return false
	}

	return policy.Enabled
}

func (c *Client) call(ctx context.Context, kind, url, contentType string, body *bytes.Reader) (bool, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		metrics.ClassifierCallsTotal.WithLabelValues(kind, "error").Inc()
		return false, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			metrics.ClassifierCallsTotal.WithLabelValues(kind, "error").Inc()
			return false, ctx.Err()
		}
		return false, c.markUnavailable(kind, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn("failed to close classify response body: %v", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return false, c.markUnavailable(kind, fmt.Errorf("sidecar returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ClassifierCallsTotal.WithLabelValues(kind, "error").Inc()
		return false, fmt.Errorf("classify %s returned status %d", kind, resp.StatusCode)
	}

	var verdict verdictResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		metrics.ClassifierCallsTotal.WithLabelValues(kind, "error").Inc()
		return false, fmt.Errorf("classify %s returned malformed response: %w", kind, err)
	}

	c.markAvailable()
	metrics.ClassifierCallDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if verdict.Sensitive {
		metrics.ClassifierCallsTotal.WithLabelValues(kind, "positive").Inc()
	} else {
		metrics.ClassifierCallsTotal.WithLabelValues(kind, "negative").Inc()
	}

	return verdict.Sensitive, nil
}

// shortCircuit reports whether a latched-down sticky client should skip
// the network call entirely.
func (c *Client) shortCircuit(kind string) bool {
	if c.sticky && c.latchedDown.Load() {
		metrics.ClassifierCallsTotal.WithLabelValues(kind, "unavailable").Inc()
		return true
	}
	return false
}

// markUnavailable records an unreachable sidecar, logging only the first
// failure of an episode so a long outage doesn't flood the log.
func (c *Client) markUnavailable(kind string, cause error) error {
	metrics.ClassifierCallsTotal.WithLabelValues(kind, "unavailable").Inc()
	if c.sticky {
		c.latchedDown.Store(true)
	}
	if c.downLogged.CompareAndSwap(false, true) {
		logging.Warn("Sensitivity analysis unavailable: %v", cause)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, cause)
}

// markAvailable closes an unavailability episode after a successful call.
func (c *Client) markAvailable() {
	if c.downLogged.CompareAndSwap(true, false) {
		logging.Info("Sensitivity analysis reachable again")
	}
}
