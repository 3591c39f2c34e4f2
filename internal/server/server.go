// Package server provides the dataset dashboard HTTP server.
//
// The dashboard exposes the catalog over a small JSON API, runs scans as
// asynchronous jobs, and streams job progress to browsers over a
// websocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/headcamlab/headcam/core/catalog"
	"github.com/headcamlab/headcam/core/sqlite"
	"github.com/headcamlab/headcam/internal/cache"
	"github.com/headcamlab/headcam/internal/logging"
	"github.com/headcamlab/headcam/internal/mediatools"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// CatalogPath is the SQLite catalog file. Created if missing.
	CatalogPath string
	// DatasetRoot is the recording tree scanned by POST /api/scan when
	// the request names no root of its own.
	DatasetRoot string
	// AllowedOrigins restricts CORS and websocket upgrades. Empty
	// allows every origin.
	AllowedOrigins []string
	// StatsTTL bounds how stale GET /api/stats may be.
	StatsTTL time.Duration
	// Tools locates ffprobe for scan jobs. Nil disables probing.
	Tools *mediatools.Toolset
	// Version is reported by / and /health.
	Version string
}

// Package state shared by the handlers. Start sets these before the
// listener accepts traffic.
var (
	ServerConfig   Config
	GlobalHub      *Hub
	globalJobStore = NewJobStore()
	globalCatalog  *catalog.Catalog
	statsCache     *cache.Value[*catalog.Stats]
)

// Start runs the dashboard server until ctx is cancelled, then shuts it
// down gracefully.
func Start(ctx context.Context, cfg Config) error {
	ServerConfig = cfg
	if ServerConfig.Addr == "" {
		ServerConfig.Addr = ":8080"
	}
	if ServerConfig.StatsTTL <= 0 {
		ServerConfig.StatsTTL = 30 * time.Second
	}

	cat, err := catalog.Open(ServerConfig.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()
	if err := cat.Migrate(); err != nil {
		return err
	}
	globalCatalog = cat

	statsCache = cache.New[*catalog.Stats](ServerConfig.StatsTTL)

	GlobalHub = NewHub()
	go GlobalHub.Run()

	wsUpgrader = newUpgrader(ServerConfig.AllowedOrigins)

	mux := setupRoutes()

	var handler http.Handler = SecurityHeadersWithCSP(APICSPConfig(), mux)
	handler = CORSMiddleware(CORSConfig{AllowedOrigins: ServerConfig.AllowedOrigins}, handler)
	handler = logging.CombinedMiddleware(handler)

	logging.ServerStartup("dashboard", ServerConfig.Addr,
		"catalog", ServerConfig.CatalogPath,
		"dataset_root", ServerConfig.DatasetRoot,
		"sqlite_driver", sqlite.DriverPackage())
	if len(ServerConfig.AllowedOrigins) == 0 {
		logging.Warn("CORS allows all origins, restrict allowed_origins for shared deployments")
	}

	srv := &http.Server{
		Addr:    ServerConfig.Addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Info("shutting down dashboard server")
	return srv.Shutdown(shutdownCtx)
}

// setupRoutes configures all HTTP routes.
func setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/videos", handleVideos)
	mux.HandleFunc("/api/videos/", handleVideoByUID)
	mux.HandleFunc("/api/stats", handleStats)
	mux.HandleFunc("/api/scan", handleScan)
	mux.HandleFunc("/api/jobs", handleJobs)
	mux.HandleFunc("/api/jobs/", handleJobByID)
	mux.HandleFunc("/ws", handleWebSocket)

	return mux
}
