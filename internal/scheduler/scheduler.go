// Package scheduler starts pipeline runs on a cron schedule.
package scheduler

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/pipeline"
	"github.com/zgt/job-scout/internal/runs"
)

// Starter launches a background run.
type Starter interface {
	Start(opts pipeline.Options) (string, error)
}

// Scheduler wraps robfig/cron and fires one run per tick.
type Scheduler struct {
	cron    *cron.Cron
	starter Starter
	opts    pipeline.Options
	spec    string
	logger  *zap.Logger
}

// New creates a Scheduler for a standard five-field cron spec or a descriptor such as "@every 6h".
func New(spec string, starter Starter, opts pipeline.Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{logger.Sugar()})),
		starter: starter,
		opts:    opts,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.trigger); err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop. Runs already started keep going in the registry.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron stopped")
}

func (s *Scheduler) trigger() {
	id, err := s.starter.Start(s.opts)
	switch {
	case errors.Is(err, runs.ErrRunInProgress):
		s.logger.Info("skipping scheduled run", zap.Error(err))
	case err != nil:
		s.logger.Error("scheduled run failed to start", zap.Error(err))
	default:
		s.logger.Info("scheduled run started", zap.String("run_id", id))
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
