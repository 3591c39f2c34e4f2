package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	headcamerrors "github.com/headcamlab/headcam/core/errors"

	"github.com/headcamlab/headcam/core/catalog"
	"github.com/headcamlab/headcam/core/sqlite"
	"github.com/headcamlab/headcam/internal/logging"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response. Driver reports the compiled
// SQLite implementation so a deployment's build mode is visible.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Driver  string `json:"driver"`
	Uptime  string `json:"uptime"`
	Videos  int    `json:"videos"`
}

var startTime = time.Now()

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "headcam dashboard API",
		"version": ServerConfig.Version,
		"endpoints": []string{
			"GET /health",
			"GET /api/videos",
			"GET /api/videos/:uid",
			"GET /api/stats",
			"POST /api/scan",
			"GET /api/jobs",
			"GET /api/jobs/:id",
			"DELETE /api/jobs/:id",
			"WS /ws",
		},
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	videos := 0
	if stats, err := cachedStats(); err == nil {
		videos = stats.TotalVideos
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: ServerConfig.Version,
		Driver:  sqlite.DriverType(),
		Uptime:  time.Since(startTime).String(),
		Videos:  videos,
	})
}

// handleVideos handles GET /api/videos with optional ?subject= and
// ?limit= filters.
func handleVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	opts := catalog.ListOptions{
		Subject: r.URL.Query().Get("subject"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	videos, err := globalCatalog.List(opts)
	if err != nil {
		logging.ErrorContext(r.Context(), "listing videos failed", "error", err)
		respondError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}

	respondList(w, http.StatusOK, videos, len(videos))
}

// handleVideoByUID handles GET /api/videos/{uid}.
func handleVideoByUID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	uid := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	if uid == "" {
		respondError(w, http.StatusBadRequest, "MISSING_UID", "Video UID is required")
		return
	}

	video, err := globalCatalog.Get(uid)
	if err != nil {
		if headcamerrors.Is(err, headcamerrors.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Video not found")
			return
		}
		logging.ErrorContext(r.Context(), "fetching video failed", "uid", uid, "error", err)
		respondError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}

	respond(w, http.StatusOK, video)
}

// handleStats handles GET /api/stats.
func handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	stats, err := cachedStats()
	if err != nil {
		logging.ErrorContext(r.Context(), "aggregating stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "CATALOG_ERROR", err.Error())
		return
	}

	respond(w, http.StatusOK, stats)
}

// cachedStats returns catalog stats, serving from the TTL cache when
// fresh so dashboard polling does not hammer SQLite.
func cachedStats() (*catalog.Stats, error) {
	if stats, ok := statsCache.Get(); ok {
		return stats, nil
	}

	stats, err := globalCatalog.Stats()
	if err != nil {
		return nil, err
	}

	statsCache.Set(stats)
	return stats, nil
}

func respond(w http.ResponseWriter, status int, data any) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondList(w http.ResponseWriter, status int, data any, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
