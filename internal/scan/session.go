package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sensitive-scanner/internal/classify"
	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/mediatypes"
	"sensitive-scanner/internal/metrics"
)

// Session is one run of the scan pipeline over an immutable asset
// snapshot. At most one Session per Scanner is active at a time.
type Session struct {
	scanner *Scanner
	opts    Options
	assets  []database.Asset
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	cursor       atomic.Int64
	processed    atomic.Int64
	active       atomic.Bool
	cancelled    atomic.Bool
	finished     atomic.Bool
	elapsedNanos atomic.Int64

	startedAt  time.Time
	done       chan struct{}
	finishOnce sync.Once
}

func newSession(scanner *Scanner, opts Options, assets []database.Asset, workers int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		scanner: scanner,
		opts:    opts,
		assets:  assets,
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// run starts the worker pool. An empty snapshot completes the session
// before run returns.
func (s *Session) run() {
	s.startedAt = time.Now()
	s.active.Store(true)
	metrics.ScanRunning.Set(1)

	total := len(s.assets)
	if total == 0 {
		logging.Info("Scan started over an empty library, completing immediately")
		s.finish()
		return
	}

	workers := s.workers
	if workers > total {
		workers = total
	}
	metrics.ScanWorkers.Set(float64(workers))
	logging.Info("Scan started: %d assets, %d workers (network fetch %v, videos %v)",
		total, workers, s.opts.AllowNetwork, s.opts.IncludeVideos)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work()
		}()
	}

	go func() {
		wg.Wait()
		s.finish()
	}()
}

// work claims snapshot indices until the cursor is exhausted or the
// session goes inactive. The active check gates each claim; work already
// claimed runs to completion and its bookkeeping still lands.
func (s *Session) work() {
	for {
		if !s.active.Load() {
			return
		}
		idx := int(s.cursor.Add(1)) - 1
		if idx >= len(s.assets) {
			return
		}
		s.processAsset(s.assets[idx])
	}
}

func (s *Session) processAsset(asset database.Asset) {
	defer s.commit()

	switch asset.Kind {
	case mediatypes.KindImage:
		img, err := s.scanner.fetcher.FetchImage(s.ctx, asset, s.opts.AllowNetwork)
		if err != nil {
			logging.Debug("Skipping image %s: %v", asset.ID, err)
			return
		}
		sensitive, err := s.scanner.classifier.ClassifyImage(s.ctx, img)
		if err != nil {
			// Unavailability degrades to a negative verdict; any other
			// failure is contained to this asset.
			if !errors.Is(err, classify.ErrUnavailable) {
				logging.Debug("Classification failed for image %s: %v", asset.ID, err)
			}
			return
		}
		if sensitive {
			s.scanner.results.AppendImage(SensitiveImage{ID: asset.ID, Deletable: true, Frame: img})
			metrics.ScanSensitiveFound.WithLabelValues("image").Inc()
		}

	case mediatypes.KindVideo:
		location, err := s.scanner.fetcher.FetchVideoLocation(s.ctx, asset)
		if err != nil {
			logging.Debug("Skipping video %s: %v", asset.ID, err)
			return
		}
		sensitive, err := s.scanner.classifier.ClassifyVideo(s.ctx, location)
		if err != nil {
			if !errors.Is(err, classify.ErrUnavailable) {
				logging.Debug("Classification failed for video %s: %v", asset.ID, err)
			}
			return
		}
		if sensitive {
			s.scanner.results.AppendVideo(SensitiveVideo{ID: asset.ID, Location: location})
			metrics.ScanSensitiveFound.WithLabelValues("video").Inc()
		}

	default:
		// Unsupported kind: counted, never classified.
	}
}

// commit records one processed asset and fans the new state out to the
// per-asset hook and subscribers.
func (s *Session) commit() {
	s.processed.Add(1)
	metrics.ScanAssetsProcessed.Inc()
	if s.scanner.hooks.OnAssetProcessed != nil {
		s.scanner.hooks.OnAssetProcessed()
	}
	s.scanner.notify(s.State())
}

// Cancel requests cooperative shutdown. Safe from any goroutine;
// cancelling a finished or already-cancelled session is a no-op.
func (s *Session) Cancel() {
	if s.finished.Load() {
		return
	}
	if s.cancelled.CompareAndSwap(false, true) {
		s.active.Store(false)
		s.cancel()
		logging.Info("Scan cancellation requested")
	}
}

// Wait blocks until the session has completed or fully cancelled.
func (s *Session) Wait() {
	<-s.done
}

// Done returns a channel closed when the session concludes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Total returns the snapshot size.
func (s *Session) Total() int {
	return len(s.assets)
}

// finish concludes the session exactly once.
func (s *Session) finish() {
	s.finishOnce.Do(func() {
		elapsed := time.Since(s.startedAt)
		s.elapsedNanos.Store(int64(elapsed))
		s.active.Store(false)
		s.finished.Store(true)

		metrics.ScanRunning.Set(0)
		metrics.ScanWorkers.Set(0)
		metrics.ScanLastDuration.Set(elapsed.Seconds())

		outcome := "completed"
		success := true
		if s.cancelled.Load() {
			outcome = "cancelled"
			success = false
		}
		metrics.ScanSessionsTotal.WithLabelValues(outcome).Inc()
		logging.Info("Scan %s: %d/%d assets processed, %d sensitive, took %v",
			outcome, s.processed.Load(), len(s.assets), s.scanner.results.TotalResults(), elapsed.Round(time.Millisecond))

		s.scanner.notify(s.State())
		if s.scanner.hooks.OnComplete != nil {
			s.scanner.hooks.OnComplete(success)
		}
		close(s.done)
	})
}

// State returns an observable snapshot of the session.
func (s *Session) State() State {
	total := len(s.assets)
	processed := int(s.processed.Load())
	progress := 1.0
	if total > 0 {
		progress = float64(processed) / float64(total)
	}
	return State{
		Total:     total,
		Processed: processed,
		Progress:  progress,
		Running:   !s.finished.Load(),
		Cancelled: s.cancelled.Load(),
		StartedAt: s.startedAt,
		Elapsed:   time.Duration(s.elapsedNanos.Load()),
	}
}
