// Package server exposes the pipeline and the job store over HTTP.
//
// Routes:
//
//	POST /api/scrape            start a background run
//	GET  /api/jobs              list stored jobs
//	GET  /api/status[?runId=]   progress of the latest or a given run
//	POST /api/jobs/status       change the status of a stored job
//	GET  /api/validate          check connectivity of every collaborator
//	POST /api/runs/cancel       cancel a run (?runId=)
//	GET  /health                liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/pipeline"
	"github.com/zgt/job-scout/internal/runs"
	"github.com/zgt/job-scout/internal/store"
)

const (
	maxBodyBytes = 1 << 20
	maxJobsLimit = 1000

	maxConcurrency = 32
)

// Runs is the part of runs.Registry used by the handlers.
type Runs interface {
	Start(opts pipeline.Options) (string, error)
	Status(id string) (jobs.Progress, error)
	Latest() (jobs.Progress, bool)
	Cancel(id string) error
}

// Check is one connectivity check reported by /api/validate.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type scrapeRequest struct {
	MaxJobs        *int  `json:"maxJobs"`
	SkipDuplicates *bool `json:"skipDuplicates"`
	Concurrency    int   `json:"concurrency"`
}

type updateStatusRequest struct {
	JobIdentifier jobs.Identity `json:"jobIdentifier"`
	NewStatus     string        `json:"newStatus"`
}

type validationResults struct {
	Errors []string `json:"errors"`
}

// Handler holds shared dependencies.
type Handler struct {
	runs     Runs
	store    store.Store
	checks   []Check
	defaults pipeline.Options
	logger   *zap.Logger
}

func NewHandler(r Runs, st store.Store, checks []Check, defaults pipeline.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runs: r, store: st, checks: checks, defaults: defaults, logger: logger}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/scrape", h.startScrape)
	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.HandleFunc("GET /api/status", h.jobStatus)
	mux.HandleFunc("POST /api/jobs/status", h.updateJobStatus)
	mux.HandleFunc("GET /api/validate", h.validate)
	mux.HandleFunc("POST /api/runs/cancel", h.cancelRun)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		jsonOK(w, map[string]string{"status": "ok"})
	})
}

func (h *Handler) startScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := h.defaults
	if req.MaxJobs != nil {
		opts.MaxJobs = *req.MaxJobs
	}
	if req.SkipDuplicates != nil {
		opts.SkipDuplicates = *req.SkipDuplicates
	}
	if req.Concurrency != 0 {
		opts.Concurrency = req.Concurrency
	}
	if opts.MaxJobs < 1 || opts.MaxJobs > maxJobsLimit {
		jsonError(w, fmt.Sprintf("maxJobs must be between 1 and %d", maxJobsLimit), http.StatusBadRequest)
		return
	}
	if opts.Concurrency < 0 || opts.Concurrency > maxConcurrency {
		jsonError(w, fmt.Sprintf("concurrency must be between 0 and %d", maxConcurrency), http.StatusBadRequest)
		return
	}

	id, err := h.runs.Start(opts)
	if err != nil {
		if errors.Is(err, runs.ErrRunInProgress) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("starting run", zap.Error(err))
		jsonError(w, "failed to start run", http.StatusInternalServerError)
		return
	}

	jsonWrite(w, http.StatusAccepted, map[string]string{
		"message": "Job scraping started",
		"runId":   id,
	})
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ReadAll(r.Context())
	if err != nil {
		h.logger.Error("reading jobs", zap.Error(err))
		jsonError(w, "failed to read jobs", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []jobs.ProcessedJob{}
	}

	jsonOK(w, map[string]any{"jobs": items})
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("runId")); id != "" {
		status, err := h.runs.Status(id)
		if err != nil {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		jsonOK(w, map[string]any{"status": status})
		return
	}

	status, ok := h.runs.Latest()
	if !ok {
		status = jobs.Progress{Message: "No runs yet"}
	}
	jsonOK(w, map[string]any{"status": status})
}

func (h *Handler) updateJobStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := req.JobIdentifier
	if id.Company == "" || id.Role == "" {
		jsonError(w, "jobIdentifier.company and jobIdentifier.role are required", http.StatusBadRequest)
		return
	}

	status, err := jobs.ParseStatus(req.NewStatus)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("updating job status", zap.Error(err))
		jsonError(w, "failed to update job status", http.StatusInternalServerError)
		return
	}

	h.logger.Info("job status updated",
		zap.String("company", id.Company),
		zap.String("role", id.Role),
		zap.String("status", string(status)),
	)
	jsonOK(w, map[string]any{"success": true})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	errs := Validate(r.Context(), h.checks)
	jsonOK(w, map[string]any{
		"success":           len(errs) == 0,
		"validationResults": validationResults{Errors: errs},
	})
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("runId"))
	if id == "" {
		jsonError(w, "runId is required", http.StatusBadRequest)
		return
	}

	if err := h.runs.Cancel(id); err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonOK(w, map[string]any{"success": true, "runId": id})
}

// Validate runs every check and returns one message per failed check.
func Validate(ctx context.Context, checks []Check) []string {
	errs := make([]string, 0)
	for _, c := range checks {
		if err := c.Ping(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", c.Name, err))
		}
	}
	return errs
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonWrite(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonWrite(w, code, map[string]string{"error": msg})
}

func jsonWrite(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
