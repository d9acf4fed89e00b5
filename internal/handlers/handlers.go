package handlers

import (
	"sync"
	"time"

	"sensitive-scanner/internal/background"
	"sensitive-scanner/internal/catalog"
	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/preview"
	"sensitive-scanner/internal/scan"
	"sensitive-scanner/internal/startup"
)

// Handlers carries the collaborators every HTTP handler needs.
type Handlers struct {
	db       *database.Database
	catalog  *catalog.Catalog
	scanner  *scan.Scanner
	previews *preview.Generator

	scanDefaults scan.Options
	budgetLimit  time.Duration

	budgetMu sync.Mutex
	budget   background.Budget

	sessMu      sync.Mutex
	lastSession *scan.Session
}

// New wires the handler set together and installs the scanner hooks that
// feed the execution budget.
func New(db *database.Database, cat *catalog.Catalog, scanner *scan.Scanner, config *startup.Config) *Handlers {
	h := &Handlers{
		db:       db,
		catalog:  cat,
		scanner:  scanner,
		previews: preview.NewGenerator(config.PreviewDir, config.PreviewsEnabled),
		scanDefaults: scan.Options{
			Concurrent:    config.ScanConcurrent,
			AllowNetwork:  config.ScanAllowNetwork,
			IncludeVideos: config.ScanIncludeVideos,
		},
		budgetLimit: config.ScanBudget,
	}

	scanner.SetHooks(scan.Hooks{
		OnAssetProcessed: h.tickBudget,
		OnComplete:       h.finishBudget,
	})

	return h
}

// Previews exposes the preview generator, mainly for startup logging.
func (h *Handlers) Previews() *preview.Generator {
	return h.previews
}

func (h *Handlers) currentBudget() background.Budget {
	h.budgetMu.Lock()
	defer h.budgetMu.Unlock()
	return h.budget
}

func (h *Handlers) setBudget(b background.Budget) {
	h.budgetMu.Lock()
	h.budget = b
	h.budgetMu.Unlock()
}

func (h *Handlers) tickBudget() {
	if b := h.currentBudget(); b != nil {
		b.Tick()
	}
}

func (h *Handlers) finishBudget(success bool) {
	if b := h.currentBudget(); b != nil {
		b.Finish(success)
	}
}
