package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/metrics"
)

// Debounce window for watcher-triggered refreshes. Bulk imports generate
// event storms; one refresh at the end covers all of them.
const watchDebounce = 5 * time.Second

// watch monitors the library directory for changes and triggers a
// debounced catalog refresh when files appear or disappear.
func (c *Catalog) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Error("Failed to create library watcher: %v", err)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close library watcher: %v", err)
		}
	}()

	watchCount := c.addDirectories(watcher)
	logging.Debug("Library watcher started, watching %d directories", watchCount)

	var debounce *time.Timer
	trigger := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(watchDebounce, func() {
			logging.Info("Library changes detected, refreshing catalog")
			if err := c.Refresh(context.Background()); err != nil {
				logging.Error("watcher-triggered refresh failed: %v", err)
			}
		})
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if strings.Contains(event.Name, string(filepath.Separator)+".") {
				continue
			}

			metrics.CatalogWatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

			switch {
			case event.Op&fsnotify.Create != 0:
				c.handleCreate(watcher, event)
				trigger()
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				trigger()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Library watcher error: %v", err)

		case <-c.stopChan:
			if debounce != nil {
				debounce.Stop()
			}
			logging.Debug("Library watcher stopped")
			return
		}
	}
}

// addDirectories adds all directories under the library root to the watcher.
func (c *Catalog) addDirectories(watcher *fsnotify.Watcher) int {
	watchCount := 0
	err := filepath.Walk(c.libraryDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			if addErr := watcher.Add(path); addErr != nil {
				logging.Warn("failed to watch directory %s: %v", path, addErr)
			} else {
				watchCount++
			}
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk library directory for watcher: %v", err)
	}
	return watchCount
}

// handleCreate adds newly created directories to the watcher.
func (c *Catalog) handleCreate(watcher *fsnotify.Watcher, event fsnotify.Event) {
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if addErr := watcher.Add(event.Name); addErr != nil {
		logging.Warn("failed to watch new directory %s: %v", event.Name, addErr)
	} else {
		logging.Debug("Watching new directory: %s", event.Name)
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
