package catalog

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 used for stable asset identifiers, not security
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/mediatypes"
	"sensitive-scanner/internal/metrics"
	"sensitive-scanner/internal/workers"
)

// WalkerConfig configures the parallel library walker
type WalkerConfig struct {
	// NumWorkers is the number of parallel workers (0 = auto based on CPU)
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// RemoteBaseURL, when set, marks zero-byte placeholder files as
	// non-resident originals fetchable from this base URL
	RemoteBaseURL string
}

// DefaultWalkerConfig returns sensible defaults based on available resources
func DefaultWalkerConfig() WalkerConfig {
	return WalkerConfig{
		NumWorkers:    workers.ForIO(8),
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

// fileJob represents a file to be catalogued
type fileJob struct {
	path    string
	info    os.FileInfo
	relPath string
}

// fileResult represents a catalogued file
type fileResult struct {
	asset *database.Asset
	err   error
}

// walker walks the library directory in parallel, producing catalog assets.
type walker struct {
	config     WalkerConfig
	libraryDir string

	jobs    chan fileJob
	results chan fileResult

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	filesSeen   atomic.Int64
	errorsCount atomic.Int64
}

func newWalker(libraryDir string, config WalkerConfig) *walker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = workers.ForIO(8)
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &walker{
		config:     config,
		libraryDir: libraryDir,
		jobs:       make(chan fileJob, config.ChannelBuffer),
		results:    make(chan fileResult, config.ChannelBuffer),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// walk performs a parallel walk of the library tree and returns all media
// assets found, ready for batch insertion into the catalog.
func (w *walker) walk() ([]database.Asset, error) {
	logging.Debug("Starting parallel library walk with %d workers", w.config.NumWorkers)
	startTime := time.Now()

	metrics.CatalogWalkWorkers.Set(float64(w.config.NumWorkers))

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}

	var allAssets []database.Asset
	var collectorWg sync.WaitGroup
	var mu sync.Mutex

	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range w.results {
			if result.err != nil {
				w.errorsCount.Add(1)
				logging.Debug("Error cataloguing file: %v", result.err)
				continue
			}
			if result.asset != nil {
				mu.Lock()
				allAssets = append(allAssets, *result.asset)
				mu.Unlock()
			}
		}
	}()

	err := w.walkAndEnqueue()

	close(w.jobs)
	w.wg.Wait()
	close(w.results)
	collectorWg.Wait()

	logging.Debug("Library walk complete: %d files in %v (errors: %d)",
		w.filesSeen.Load(), time.Since(startTime), w.errorsCount.Load())

	return allAssets, err
}

// walkAndEnqueue walks the library tree and sends jobs to workers
func (w *walker) walkAndEnqueue() error {
	return filepath.WalkDir(w.libraryDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-w.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil // Continue walking
		}

		if w.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.libraryDir, path)
		if err != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		select {
		case w.jobs <- fileJob{path: path, info: info, relPath: relPath}:
		case <-w.ctx.Done():
			return fs.SkipAll
		}

		return nil
	})
}

// worker processes files from the jobs channel
func (w *walker) worker(id int) {
	defer w.wg.Done()

	logging.Debug("Catalog worker %d started", id)

	for job := range w.jobs {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		result := w.processFile(job)

		if result.err == nil && result.asset != nil {
			w.filesSeen.Add(1)
		}

		select {
		case w.results <- result:
		case <-w.ctx.Done():
			return
		}
	}

	logging.Debug("Catalog worker %d finished", id)
}

// processFile converts a single file into a catalog asset.
func (w *walker) processFile(job fileJob) fileResult {
	ext := strings.ToLower(filepath.Ext(job.info.Name()))
	kind := mediatypes.KindForExt(ext)

	if kind == mediatypes.KindOther {
		return fileResult{}
	}

	asset := &database.Asset{
		ID:        AssetID(job.relPath),
		Path:      job.relPath,
		Kind:      kind,
		Size:      job.info.Size(),
		ModTime:   job.info.ModTime(),
		IndexedAt: time.Now(),
	}

	// Zero-byte files are treated as non-resident placeholders whose
	// original bytes live behind the configured remote base URL.
	if job.info.Size() == 0 && w.config.RemoteBaseURL != "" {
		asset.RemoteURL = strings.TrimRight(w.config.RemoteBaseURL, "/") + "/" + filepath.ToSlash(job.relPath)
	}

	return fileResult{asset: asset}
}

// stop cancels the walk
func (w *walker) stop() {
	w.cancel()
}

// AssetID derives the stable identifier for a library-relative path.
func AssetID(relPath string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(filepath.ToSlash(relPath)))) //nolint:gosec // identifier, not security
}
