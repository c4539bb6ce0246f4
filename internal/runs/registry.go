// Package runs tracks pipeline runs started in the background and exposes their progress.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/logger"
	"github.com/zgt/job-scout/internal/pipeline"
)

var (
	// ErrRunInProgress is returned by Start while another run is active.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")
	// ErrRunNotFound is returned for unknown or evicted run ids.
	ErrRunNotFound = errors.New("run not found")
)

const (
	defaultHistory = 20
	publishTimeout = 5 * time.Second
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options, onProgress func(jobs.Progress)) (*pipeline.Result, error)
}

// Publisher fans out progress snapshots.
type Publisher interface {
	Publish(ctx context.Context, status jobs.Progress) error
}

// Config bounds run duration and retained history.
type Config struct {
	RunTimeout time.Duration `mapstructure:"run-timeout"`
	History    int           `mapstructure:"history"`
}

type run struct {
	status jobs.Progress
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry runs at most one pipeline at a time and keeps the snapshots of recent runs.
type Registry struct {
	runner    Runner
	publisher Publisher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex
	runs   map[string]*run
	order  []string
	active string
}

func New(runner Runner, cfg Config, log *zap.Logger) *Registry {
	if cfg.History <= 0 {
		cfg.History = defaultHistory
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		runner: runner,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		runs:   make(map[string]*run),
	}
}

// WithPublisher sets the publisher that receives every snapshot.
func (r *Registry) WithPublisher(p Publisher) *Registry {
	r.publisher = p
	return r
}

// Start launches a run in the background and returns its id. The run is detached from
// the caller and bounded only by the configured run timeout and Cancel.
func (r *Registry) Start(opts pipeline.Options) (string, error) {
	r.mu.Lock()
	if r.active != "" {
		active := r.active
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrRunInProgress, active)
	}

	id := uuid.NewString()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if r.cfg.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.cfg.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	now := r.now()
	current := &run{
		status: jobs.Progress{
			RunID:     id,
			IsRunning: true,
			Stage:     jobs.StageScraping,
			Message:   "Starting",
			StartedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.runs[id] = current
	r.order = append(r.order, id)
	r.active = id
	initial := current.status
	r.mu.Unlock()

	log := logger.WithRun(r.logger, id)
	log.Info("run started", zap.Int("max_jobs", opts.MaxJobs), zap.Bool("skip_duplicates", opts.SkipDuplicates))
	r.publish(initial)

	go func() {
		defer close(current.done)
		defer cancel()

		res, err := r.runner.Run(ctx, opts, func(p jobs.Progress) {
			r.update(id, p)
		})
		r.finish(id, res, err)

		if err != nil {
			log.Error("run failed", zap.Error(err))
			return
		}
		log.Info("run completed", zap.Int("jobs_found", res.JobsFound), zap.Int("jobs_matched", res.JobsMatched))
	}()

	return id, nil
}

// Status returns the latest snapshot of a run.
func (r *Registry) Status(id string) (jobs.Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.runs[id]
	if !ok {
		return jobs.Progress{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return current.status, nil
}

// Latest returns the snapshot of the most recently started run.
func (r *Registry) Latest() (jobs.Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return jobs.Progress{}, false
	}
	return r.runs[r.order[len(r.order)-1]].status, true
}

// Cancel stops an active run. Cancelling a finished run is a no-op.
func (r *Registry) Cancel(id string) error {
	r.mu.RLock()
	current, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	current.cancel()
	return nil
}

// Wait blocks until the run finishes or ctx is done, and returns its final snapshot.
func (r *Registry) Wait(ctx context.Context, id string) (jobs.Progress, error) {
	r.mu.RLock()
	current, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return jobs.Progress{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	select {
	case <-current.done:
		return r.Status(id)
	case <-ctx.Done():
		return jobs.Progress{}, ctx.Err()
	}
}

// Shutdown cancels the active run and waits for it to stop.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	if active == "" {
		return nil
	}

	if err := r.Cancel(active); err != nil {
		return err
	}
	_, err := r.Wait(ctx, active)
	if errors.Is(err, ErrRunNotFound) {
		return nil
	}
	return err
}

func (r *Registry) update(id string, p jobs.Progress) {
	r.mu.Lock()
	current, ok := r.runs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.RunID = id
	p.StartedAt = current.status.StartedAt
	p.UpdatedAt = r.now()
	current.status = p
	// A terminal snapshot frees the slot before it is published.
	if p.Stage.Terminal() && r.active == id {
		r.active = ""
	}
	r.mu.Unlock()

	r.publish(p)
}

// finish makes sure the run ends in a terminal state even when the runner did not report one.
func (r *Registry) finish(id string, res *pipeline.Result, err error) {
	r.mu.Lock()
	current := r.runs[id]
	status := current.status
	forced := !status.Stage.Terminal()
	if forced {
		status.IsRunning = false
		status.UpdatedAt = r.now()
		if err != nil {
			status.Stage = jobs.StageError
			status.Error = err.Error()
			status.Message = "Pipeline failed: " + err.Error()
		} else {
			status.Stage = jobs.StageCompleted
			status.Progress = 100
			if res != nil {
				status.JobsFound = res.JobsFound
				status.JobsMatched = res.JobsMatched
			}
		}
		current.status = status
	}
	if r.active == id {
		r.active = ""
	}
	r.prune()
	r.mu.Unlock()

	if forced {
		r.publish(status)
	}
}

// prune drops the oldest finished runs beyond the history limit. Callers hold mu.
func (r *Registry) prune() {
	for len(r.order) > r.cfg.History {
		oldest := r.order[0]
		if oldest == r.active {
			return
		}
		delete(r.runs, oldest)
		r.order = r.order[1:]
	}
}

func (r *Registry) publish(status jobs.Progress) {
	if r.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, status); err != nil {
		logger.WithRun(r.logger, status.RunID).Warn("publishing run status failed", zap.Error(err))
	}
}
