package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sensitive-scanner/internal/catalog"
	"sensitive-scanner/internal/classify"
	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/fetcher"
	"sensitive-scanner/internal/handlers"
	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/memory"
	"sensitive-scanner/internal/middleware"
	"sensitive-scanner/internal/preview"
	"sensitive-scanner/internal/scan"
	"sensitive-scanner/internal/startup"
	"sensitive-scanner/internal/workers"
)

func main() {
	startTime := time.Now()

	// Configure GOMEMLIMIT before anything allocates
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Clean up expired sessions periodically
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			if err := db.CleanExpiredSessions(context.Background()); err != nil {
				logging.Warn("Session cleanup failed: %v", err)
			}
		}
	}()

	// Initialize catalog
	startup.LogCatalogInit(config.RefreshInterval)
	cat := catalog.New(db, config.LibraryDir, config.RefreshInterval)
	cat.SetWalkerConfig(catalog.WalkerConfig{
		SkipHidden:    true,
		RemoteBaseURL: config.RemoteOriginalsURL,
	})
	cat.Start()
	startup.LogCatalogStarted()

	// Initialize classifier client
	startup.LogClassifierInit(config.ClassifierURL, config.ClassifierSticky)
	var classifierOpts []classify.Option
	if config.ClassifierSticky {
		classifierOpts = append(classifierOpts, classify.WithStickyUnavailable())
	}
	classifier := classify.NewClient(config.ClassifierURL, classifierOpts...)

	// Initialize preview support
	startup.LogPreviewInit(config.PreviewsEnabled)
	if config.PreviewsEnabled {
		if err := preview.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to pure-Go decoding: %v", err)
		}
		defer preview.ShutdownVips()
	}

	// Memory monitor applies backpressure to image decoding
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Initialize scanner
	fetch := fetcher.New(config.LibraryDir)
	fetch.SetGate(monitor)
	scanner := scan.NewScanner(cat, fetch, classifier, workers.ForScan(true))

	// Initialize handlers
	h := handlers.New(db, cat, scanner, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply authentication middleware
	authedRouter := h.AuthMiddleware(router)

	// Apply metrics middleware
	meteredRouter := middleware.Metrics(middleware.DefaultMetricsConfig())(authedRouter)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(meteredRouter)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics are served on their own port so they stay off the
	// authenticated surface.
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, cat, scanner, monitor)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/setup-required", h.CheckSetupRequired).Methods("GET")
	auth.HandleFunc("/setup", h.Setup).Methods("POST")
	auth.HandleFunc("/login", h.Login).Methods("POST")
	auth.HandleFunc("/logout", h.Logout).Methods("POST")
	auth.HandleFunc("/check", h.CheckAuth).Methods("GET")
	auth.HandleFunc("/change-pin", h.ChangePIN).Methods("POST")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", h.StartScan).Methods("POST")
	api.HandleFunc("/scan", h.CancelScan).Methods("DELETE")
	api.HandleFunc("/scan/status", h.ScanStatus).Methods("GET")
	api.HandleFunc("/reset", h.ResetScan).Methods("POST")

	// Results
	api.HandleFunc("/results", h.ListResults).Methods("GET")
	api.HandleFunc("/results/{id}", h.DeleteResult).Methods("DELETE")
	api.HandleFunc("/results/{id}/image", h.ResultImage).Methods("GET")
	api.HandleFunc("/results/{id}/thumbnail", h.ResultThumbnail).Methods("GET")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, cat *catalog.Catalog, scanner *scan.Scanner, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Cancelling active scan")
	scanner.Cancel()
	startup.LogShutdownStepComplete("Scan cancelled")

	startup.LogShutdownStep("Stopping catalog")
	cat.Stop()
	startup.LogShutdownStepComplete("Catalog stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownComplete()
}
