package fetcher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/metrics"
)

var (
	// ErrNetworkDisallowed is returned when an asset's original is not
	// resident on disk and the scan forbids network fetches.
	ErrNetworkDisallowed = errors.New("original not resident and network fetch disallowed")

	// ErrNotResident is returned for non-resident videos; video originals
	// are never fetched over the network.
	ErrNotResident = errors.New("video original not resident on disk")
)

// Gate pauses expensive decodes under memory pressure. A false return
// means the process is shutting down.
type Gate interface {
	WaitIfPaused() bool
}

// Fetcher resolves catalogued assets to decoded pixel data or playable
// file locations.
type Fetcher struct {
	libraryDir   string
	client       *http.Client
	maxDimension int
	maxPixels    int
	gate         Gate
}

// New creates a Fetcher rooted at the given library directory.
func New(libraryDir string) *Fetcher {
	return &Fetcher{
		libraryDir:   libraryDir,
		client:       &http.Client{Timeout: 60 * time.Second},
		maxDimension: MaxImageDimension,
		maxPixels:    MaxImagePixels,
	}
}

// SetGate installs a memory-pressure gate consulted before each decode.
func (f *Fetcher) SetGate(g Gate) {
	f.gate = g
}

// FetchImage resolves an image asset to decoded pixel data.
// Non-resident originals are downloaded only when allowNetwork is true.
func (f *Fetcher) FetchImage(ctx context.Context, asset database.Asset, allowNetwork bool) (image.Image, error) {
	if f.gate != nil && !f.gate.WaitIfPaused() {
		return nil, errors.New("decode gate closed during shutdown")
	}

	path := filepath.Join(f.libraryDir, asset.Path)

	if f.isResident(path) {
		img, err := loadImageConstrained(path, f.maxDimension, f.maxPixels)
		if err != nil {
			metrics.FetchTotal.WithLabelValues("image", "error").Inc()
			return nil, fmt.Errorf("failed to decode image %s: %w", asset.Path, err)
		}
		metrics.FetchTotal.WithLabelValues("image", "success").Inc()
		return img, nil
	}

	if asset.RemoteURL == "" {
		metrics.FetchTotal.WithLabelValues("image", "error").Inc()
		return nil, fmt.Errorf("image %s is missing and has no remote original", asset.Path)
	}

	if !allowNetwork {
		metrics.FetchTotal.WithLabelValues("image", "skipped_network").Inc()
		return nil, ErrNetworkDisallowed
	}

	img, err := f.fetchRemoteImage(ctx, asset)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("image", "error").Inc()
		return nil, err
	}

	metrics.FetchTotal.WithLabelValues("image", "success_remote").Inc()
	return img, nil
}

// FetchVideoLocation resolves a video asset to a playable local file path.
func (f *Fetcher) FetchVideoLocation(ctx context.Context, asset database.Asset) (string, error) {
	_ = ctx

	path := filepath.Join(f.libraryDir, asset.Path)

	if !f.isResident(path) {
		metrics.FetchTotal.WithLabelValues("video", "error").Inc()
		return "", ErrNotResident
	}

	metrics.FetchTotal.WithLabelValues("video", "success").Inc()
	return path, nil
}

// isResident reports whether the original bytes exist on disk.
// Zero-byte files are cloud placeholders, not originals.
func (f *Fetcher) isResident(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// fetchRemoteImage downloads a non-resident original to a temporary file
// and decodes it with the usual constraints.
func (f *Fetcher) fetchRemoteImage(ctx context.Context, asset database.Asset) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.RemoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL for %s: %w", asset.Path, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote original for %s: %w", asset.Path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn("failed to close remote fetch body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote original for %s returned status %d", asset.Path, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "original-*"+filepath.Ext(asset.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if removeErr := os.Remove(tmpPath); removeErr != nil {
			logging.Warn("failed to remove temp original %s: %v", tmpPath, removeErr)
		}
	}()

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download remote original for %s: %w", asset.Path, err)
	}

	metrics.FetchRemoteBytes.Add(float64(written))
	logging.Debug("Downloaded remote original for %s (%d bytes)", asset.Path, written)

	return loadImageConstrained(tmpPath, f.maxDimension, f.maxPixels)
}
