package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/headcamlab/headcam/internal/dataset"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ScanRequest is the body of POST /api/scan. All fields are optional;
// an empty body scans the configured dataset root.
type ScanRequest struct {
	Root    string `json:"root,omitempty"`
	NoProbe bool   `json:"no_probe,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

// ScanSummary is the result of a finished scan job.
type ScanSummary struct {
	Root           string  `json:"root"`
	Total          int     `json:"total"`
	Scanned        int     `json:"scanned"`
	Failed         int     `json:"failed"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Job represents an asynchronous dataset operation.
type Job struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Status      JobStatus    `json:"status"`
	Progress    int          `json:"progress"` // 0-100
	Result      *ScanSummary `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
	Request     ScanRequest  `json:"request"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobStore manages jobs in memory.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
	}
}

// Create creates a new job and returns its ID.
func (s *JobStore) Create(kind string, req ScanRequest) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC().Format(time.RFC3339)

	job := &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    JobStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.jobs[job.ID] = job
	return job
}

// Get retrieves a snapshot of a job by ID. The copy is safe to marshal
// while the job keeps running.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// Update updates a job's status and progress. A job that has reached a
// terminal state stays there; late progress updates from a cancelled
// scan are dropped.
func (s *JobStore) Update(id string, status JobStatus, progress int, result *ScanSummary, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if job.Status == JobStatusCompleted || job.Status == JobStatusFailed || job.Status == JobStatusCancelled {
		return nil
	}

	job.Status = status
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if result != nil {
		job.Result = result
	}

	if errMsg != "" {
		job.Error = errMsg
	}

	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		job.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	}

	return nil
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt > jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if job.Status != JobStatusPending && job.Status != JobStatusRunning {
		return fmt.Errorf("job cannot be cancelled (status: %s)", job.Status)
	}

	if job.cancel != nil {
		job.cancel()
	}

	job.Status = JobStatusCancelled
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	job.CompletedAt = time.Now().UTC().Format(time.RFC3339)

	return nil
}

// runScanJob executes a scan job in a goroutine, streaming progress to
// the job store and the websocket hub.
func runScanJob(job *Job) {
	go func() {
		globalJobStore.Update(job.ID, JobStatusRunning, 0, nil, "")
		GlobalHub.Progress("scan", "collect", "collecting recordings", 0)

		root := job.Request.Root
		if root == "" {
			root = ServerConfig.DatasetRoot
		}

		cfg := dataset.ScanConfig{
			Root:    root,
			Catalog: globalCatalog,
			Tools:   ServerConfig.Tools,
			Workers: job.Request.Workers,
			NoProbe: job.Request.NoProbe,
			Progress: func(stage string, done, total int, message string) {
				pct := 0
				if total > 0 {
					pct = done * 100 / total
				}
				globalJobStore.Update(job.ID, JobStatusRunning, pct, nil, "")
				GlobalHub.Progress("scan", stage, message, pct)
			},
		}

		report, err := dataset.Scan(job.ctx, cfg)

		if job.ctx.Err() != nil {
			snap, _ := globalJobStore.Get(job.ID)
			globalJobStore.Update(job.ID, JobStatusCancelled, snap.Progress, nil, "scan cancelled")
			GlobalHub.Error("scan", "scan cancelled")
			return
		}

		if err != nil {
			globalJobStore.Update(job.ID, JobStatusFailed, 100, nil, err.Error())
			GlobalHub.Error("scan", err.Error())
			return
		}

		summary := &ScanSummary{
			Root:           report.Root,
			Total:          report.Total,
			Scanned:        report.Scanned,
			Failed:         report.Failed,
			ElapsedSeconds: report.Elapsed.Seconds(),
		}
		globalJobStore.Update(job.ID, JobStatusCompleted, 100, summary, "")

		// The catalog just changed under the stats cache.
		statsCache.Invalidate()

		GlobalHub.Complete("scan", fmt.Sprintf("scanned %d of %d recordings", report.Scanned, report.Total), map[string]any{
			"total":   report.Total,
			"scanned": report.Scanned,
			"failed":  report.Failed,
		})
	}()
}

// handleScan handles POST /api/scan - start an asynchronous scan job.
func handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	var req ScanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
			return
		}
	}

	if req.Root == "" && ServerConfig.DatasetRoot == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ROOT", "No dataset root configured; pass one in the request body")
		return
	}

	job := globalJobStore.Create("scan", req)
	runScanJob(job)

	snap, _ := globalJobStore.Get(job.ID)
	respond(w, http.StatusAccepted, snap)
}

// handleJobs handles GET /api/jobs - list all jobs.
func handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	jobs := globalJobStore.List()
	respondList(w, http.StatusOK, jobs, len(jobs))
}

// handleJobByID handles GET /api/jobs/{id} and DELETE /api/jobs/{id}.
func handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, exists := globalJobStore.Get(id)
		if !exists {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		respond(w, http.StatusOK, job)

	case http.MethodDelete:
		if err := globalJobStore.Cancel(id); err != nil {
			if strings.Contains(err.Error(), "not found") {
				respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
				return
			}
			respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
			return
		}
		respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})

	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}
