package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"sensitive-scanner/internal/classify"
	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/metrics"
)

// ErrPolicyDisabled is returned by Start when the sensitivity-analysis
// capability is switched off. No counters or results are touched.
var ErrPolicyDisabled = errors.New("sensitivity analysis policy is disabled")

// Source enumerates the asset library. The returned list is the session's
// immutable work snapshot.
type Source interface {
	Enumerate(ctx context.Context, includeVideos bool) ([]database.Asset, error)
}

// Fetcher resolves assets to decoded frames or playable locations.
type Fetcher interface {
	FetchImage(ctx context.Context, asset database.Asset, allowNetwork bool) (image.Image, error)
	FetchVideoLocation(ctx context.Context, asset database.Asset) (string, error)
}

// Options are the per-scan tunables, passed explicitly to Start rather
// than read from ambient configuration.
type Options struct {
	Concurrent    bool
	AllowNetwork  bool
	IncludeVideos bool
}

// State is an observable snapshot of a scan session.
type State struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Progress  float64       `json:"progress"`
	Running   bool          `json:"running"`
	Cancelled bool          `json:"cancelled"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
}

// PercentRounded returns progress as a percentage rounded to the nearest
// multiple of 5. Coarse on purpose, so displayed progress steps smoothly.
func (s State) PercentRounded() int {
	return int(math.Round(s.Progress*100/5)) * 5
}

// Hooks are optional callbacks fired from worker goroutines. They let a
// background-execution adapter track per-asset completion and the final
// outcome without reading the observable state.
type Hooks struct {
	// OnAssetProcessed fires once per processed asset.
	OnAssetProcessed func()
	// OnComplete fires exactly once per session. success is false when
	// the session was cancelled before exhausting its snapshot.
	OnComplete func(success bool)
}

// Scanner owns the scan lifecycle: at most one session runs at a time,
// and starting a new one cancels and awaits the previous session.
type Scanner struct {
	source     Source
	fetcher    Fetcher
	classifier classify.Classifier
	results    *Results
	workers    int
	hooks      Hooks

	mu      sync.Mutex
	current *Session

	subMu       sync.Mutex
	subscribers map[chan State]struct{}
}

// NewScanner creates a Scanner over the given collaborators. workers is
// the concurrency cap used when Options.Concurrent is set; sequential
// scans always use a single worker.
func NewScanner(source Source, fetcher Fetcher, classifier classify.Classifier, workers int) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		source:      source,
		fetcher:     fetcher,
		classifier:  classifier,
		results:     NewResults(),
		workers:     workers,
		subscribers: make(map[chan State]struct{}),
	}
}

// SetHooks installs the background-adapter callbacks. Must be called
// before the first Start.
func (s *Scanner) SetHooks(h Hooks) {
	s.hooks = h
}

// Results returns the scanner's result store.
func (s *Scanner) Results() *Results {
	return s.results
}

// Start begins a new scan session. Any running session is cancelled and
// awaited first. The session runs detached from ctx, which covers only
// the policy probe and the enumeration; cancel the session itself to
// stop it.
func (s *Scanner) Start(ctx context.Context, opts Options) (*Session, error) {
	if !s.classifier.PolicyEnabled(ctx) {
		metrics.ScanSessionsTotal.WithLabelValues("policy_disabled").Inc()
		return nil, ErrPolicyDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.current; prev != nil {
		prev.Cancel()
		prev.Wait()
	}

	assets, err := s.source.Enumerate(ctx, opts.IncludeVideos)
	if err != nil {
		metrics.ScanSessionsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to enumerate assets: %w", err)
	}

	s.results.Reset()

	workers := 1
	if opts.Concurrent {
		workers = s.workers
	}

	sess := newSession(s, opts, assets, workers)
	s.current = sess
	sess.run()
	return sess, nil
}

// Cancel cancels the active session, if any. Idempotent.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess != nil {
		sess.Cancel()
	}
}

// State returns the latest session's state, or a zero State when no scan
// has ever run.
func (s *Scanner) State() State {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess == nil {
		return State{}
	}
	return sess.State()
}

// Subscribe registers a listener for state changes. Slow listeners drop
// intermediate updates rather than blocking workers.
func (s *Scanner) Subscribe() chan State {
	ch := make(chan State, 16)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Scanner) Unsubscribe(ch chan State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Scanner) notify(state State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
		}
	}
}
