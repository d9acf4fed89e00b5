package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/mediatypes"
	"sensitive-scanner/internal/metrics"
)

const (
	// Number of assets to upsert per transaction
	batchSize = 500

	// Delay between batches to allow other operations
	batchDelay = 10 * time.Millisecond
)

// ErrNotInLibrary is returned when a path escapes the library directory.
var ErrNotInLibrary = errors.New("path outside library directory")

// Catalog is the library asset source. It maintains the persistent index
// of the library directory and answers scan-snapshot enumerations from it.
type Catalog struct {
	db         *database.Database
	libraryDir string

	refreshInterval time.Duration
	walkConfig      WalkerConfig

	stopChan chan struct{}
	stopOnce sync.Once

	refreshMu       sync.Mutex
	isRefreshing    bool
	lastRefreshTime time.Time
	initialComplete bool
	initialErr      error

	// Callback when a refresh completes
	onRefreshComplete func()
}

// New creates a new Catalog over the given library directory.
func New(db *database.Database, libraryDir string, refreshInterval time.Duration) *Catalog {
	return &Catalog{
		db:              db,
		libraryDir:      libraryDir,
		refreshInterval: refreshInterval,
		walkConfig:      DefaultWalkerConfig(),
		stopChan:        make(chan struct{}),
	}
}

// SetWalkerConfig overrides the parallel walker configuration.
func (c *Catalog) SetWalkerConfig(config WalkerConfig) {
	c.walkConfig = config
}

// SetOnRefreshComplete sets a callback invoked after each completed refresh.
func (c *Catalog) SetOnRefreshComplete(callback func()) {
	c.onRefreshComplete = callback
}

// LibraryDir returns the root of the library this catalog indexes.
func (c *Catalog) LibraryDir() string {
	return c.libraryDir
}

// Start begins catalog maintenance: an initial refresh, filesystem
// watching, and periodic full refreshes.
func (c *Catalog) Start() {
	go func() {
		logging.Info("Starting initial catalog refresh in background...")
		if err := c.Refresh(context.Background()); err != nil {
			logging.Error("Initial catalog refresh error: %v", err)
			c.refreshMu.Lock()
			c.initialErr = err
			c.refreshMu.Unlock()
		}
	}()

	go c.watch()
	go c.periodicRefresh()
}

// Stop stops catalog maintenance.
func (c *Catalog) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// Refresh performs a full walk of the library directory and reconciles the
// catalog against it. Concurrent calls coalesce: if a refresh is already in
// progress the call is a no-op.
func (c *Catalog) Refresh(ctx context.Context) error {
	if !c.tryStartRefresh() {
		logging.Info("Catalog refresh already in progress, skipping...")
		return nil
	}
	defer c.finishRefresh()

	metrics.CatalogRefreshTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting catalog refresh...")

	w := newWalker(c.libraryDir, c.walkConfig)

	go func() {
		select {
		case <-c.stopChan:
			w.stop()
		case <-ctx.Done():
			w.stop()
		case <-w.ctx.Done():
		}
	}()

	assets, err := w.walk()
	if err != nil {
		metrics.CatalogRefreshErrors.Inc()
		return fmt.Errorf("catalog walk failed: %w", err)
	}

	if err := c.storeBatched(ctx, assets); err != nil {
		metrics.CatalogRefreshErrors.Inc()
		return err
	}

	// Drop rows for files that vanished from disk
	pruned, err := c.db.PruneAssetsBefore(ctx, startTime)
	if err != nil {
		logging.Error("Error pruning missing assets: %v", err)
		metrics.CatalogRefreshErrors.Inc()
	} else if pruned > 0 {
		logging.Info("Removed %d missing assets from catalog", pruned)
	}

	c.refreshMu.Lock()
	c.lastRefreshTime = time.Now()
	c.refreshMu.Unlock()

	c.updateAssetGauges(ctx)

	duration := time.Since(startTime)
	metrics.CatalogRefreshDuration.Set(duration.Seconds())
	logging.Info("Catalog refresh complete: %d assets in %v", len(assets), duration)

	if c.onRefreshComplete != nil {
		c.onRefreshComplete()
	}

	return nil
}

// storeBatched upserts assets into the catalog in batches.
func (c *Catalog) storeBatched(ctx context.Context, assets []database.Asset) error {
	total := len(assets)

	for i := 0; i < total; i += batchSize {
		select {
		case <-c.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := i + batchSize
		if end > total {
			end = total
		}

		if err := c.db.UpsertAssets(ctx, assets[i:end]); err != nil {
			logging.Error("Error storing catalog batch: %v", err)
		}

		time.Sleep(batchDelay)
	}

	return nil
}

func (c *Catalog) updateAssetGauges(ctx context.Context) {
	counts, err := c.db.CountsByKind(ctx)
	if err != nil {
		logging.Warn("Failed to update catalog gauges: %v", err)
		return
	}
	for _, kind := range []mediatypes.Kind{mediatypes.KindImage, mediatypes.KindVideo} {
		metrics.CatalogAssets.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}

func (c *Catalog) tryStartRefresh() bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.isRefreshing {
		return false
	}
	c.isRefreshing = true
	return true
}

func (c *Catalog) finishRefresh() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.isRefreshing = false
	c.initialComplete = true
}

// IsRefreshing returns whether a refresh is currently in progress.
func (c *Catalog) IsRefreshing() bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.isRefreshing
}

// IsReady returns true once the initial refresh has completed.
func (c *Catalog) IsReady() bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.initialComplete
}

// LastRefreshTime returns the time of the last completed refresh.
func (c *Catalog) LastRefreshTime() time.Time {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.lastRefreshTime
}

// InitialError returns the error from the initial refresh, if any.
func (c *Catalog) InitialError() error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.initialErr
}

// Enumerate returns the ordered asset snapshot for a new scan session.
func (c *Catalog) Enumerate(ctx context.Context, includeVideos bool) ([]database.Asset, error) {
	return c.db.EnumerateAssets(ctx, includeVideos)
}

// Count returns the number of assets a scan with the given options would cover.
func (c *Catalog) Count(ctx context.Context, includeVideos bool) (int, error) {
	return c.db.CountAssets(ctx, includeVideos)
}

// Get returns a single asset by id.
func (c *Catalog) Get(ctx context.Context, id string) (*database.Asset, error) {
	return c.db.GetAsset(ctx, id)
}

// Delete removes the backing library file for an asset and drops its
// catalog row. The catalog row is only removed once the file deletion
// has succeeded (or the file was already gone).
func (c *Catalog) Delete(ctx context.Context, id string) error {
	asset, err := c.db.GetAsset(ctx, id)
	if err != nil {
		return err
	}

	fullPath, err := c.resolvePath(asset.Path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete library file %s: %w", asset.Path, err)
	}

	if err := c.db.DeleteAsset(ctx, id); err != nil {
		return err
	}

	logging.Info("Deleted library asset %s (%s)", id, asset.Path)
	c.updateAssetGauges(ctx)
	return nil
}

// resolvePath joins a library-relative path and verifies it stays inside
// the library directory.
func (c *Catalog) resolvePath(relPath string) (string, error) {
	fullPath := filepath.Join(c.libraryDir, relPath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	absLibrary, err := filepath.Abs(c.libraryDir)
	if err != nil {
		return "", err
	}

	if absPath != absLibrary && !strings.HasPrefix(absPath, absLibrary+string(filepath.Separator)) {
		return "", ErrNotInLibrary
	}

	return fullPath, nil
}

func (c *Catalog) periodicRefresh() {
	if c.refreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic catalog refresh triggered")
			if err := c.Refresh(context.Background()); err != nil {
				logging.Error("periodic catalog refresh failed: %v", err)
			}
		case <-c.stopChan:
			return
		}
	}
}
