package classify

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func sidecar(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestClassifyImageVerdicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sensitive bool
	}{
		{"positive verdict", true},
		{"negative verdict", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/classify/image" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "image/png" {
					t.Errorf("Content-Type = %s, want image/png", ct)
				}
				if err := json.NewEncoder(w).Encode(map[string]bool{"sensitive": tt.sensitive}); err != nil {
					t.Errorf("failed to encode response: %v", err)
				}
			})

			c := NewClient(server.URL)
			got, err := c.ClassifyImage(context.Background(), testFrame())
			if err != nil {
				t.Fatalf("ClassifyImage failed: %v", err)
			}
			if got != tt.sensitive {
				t.Errorf("verdict = %v, want %v", got, tt.sensitive)
			}
		})
	}
}

func TestClassifyVideoSendsPath(t *testing.T) {
	t.Parallel()

	server := sidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/classify/video" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req["path"] != "/library/clip.mp4" {
			t.Errorf("path = %s, want /library/clip.mp4", req["path"])
		}
		if err := json.NewEncoder(w).Encode(map[string]bool{"sensitive": true}); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	})

	c := NewClient(server.URL)
	got, err := c.ClassifyVideo(context.Background(), "/library/clip.mp4")
	if err != nil {
		t.Fatalf("ClassifyVideo failed: %v", err)
	}
	if !got {
		t.Error("expected positive verdict")
	}
}

func TestClassifyUnavailable(t *testing.T) {
	t.Parallel()

	// A closed server produces connection errors.
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(url)
	got, err := c.ClassifyImage(context.Background(), testFrame())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got {
		t.Error("unavailable call must not report a positive verdict")
	}
}

func TestClassifyServiceUnavailableStatus(t *testing.T) {
	t.Parallel()

	server := sidecar(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewClient(server.URL)
	if _, err := c.ClassifyImage(context.Background(), testFrame()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for 503, got %v", err)
	}
}

func TestClassifyServerErrorIsNotUnavailable(t *testing.T) {
	t.Parallel()

	server := sidecar(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := NewClient(server.URL)
	_, err := c.ClassifyImage(context.Background(), testFrame())
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("a 500 is a call failure, not sidecar unavailability")
	}
}

func TestStickyUnavailableLatches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := sidecar(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewClient(server.URL, WithStickyUnavailable())

	for i := 0; i < 3; i++ {
		if _, err := c.ClassifyImage(context.Background(), testFrame()); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected ErrUnavailable, got %v", i, err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("sidecar called %d times, want 1 (latched after first failure)", got)
	}
}

func TestNonStickyRetriesEveryCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := sidecar(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewClient(server.URL)

	for i := 0; i < 3; i++ {
		if _, err := c.ClassifyImage(context.Background(), testFrame()); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected ErrUnavailable, got %v", i, err)
		}
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("sidecar called %d times, want 3 (per-call evaluation)", got)
	}
}

func TestPolicyEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    bool
	}{
		{
			"enabled",
			func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]bool{"enabled": true})
			},
			true,
		},
		{
			"disabled",
			func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]bool{"enabled": false})
			},
			false,
		},
		{
			"probe error counts as disabled",
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := sidecar(t, tt.handler)
			c := NewClient(server.URL)
			if got := c.PolicyEnabled(context.Background()); got != tt.want {
				t.Errorf("PolicyEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyContextCancellation(t *testing.T) {
	t.Parallel()

	server := sidecar(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"sensitive": false})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(server.URL)
	_, err := c.ClassifyImage(ctx, testFrame())
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("cancellation must not be reported as sidecar unavailability")
	}
}
