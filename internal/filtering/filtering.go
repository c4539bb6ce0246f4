// Package filtering drops scraped jobs before they reach the evaluator.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
)

// Filter represents a single filtering step applied to scraped jobs.
type Filter interface {
	Name() string
	IsEnabled() bool
	Apply(ctx context.Context, items []jobs.RawJob) ([]jobs.RawJob, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config lists what to exclude.
type Config struct {
	Companies   []string `mapstructure:"companies"`
	Keywords    []string `mapstructure:"keywords"`
	ExcludeFile string   `mapstructure:"exclude-file"`
}

// FromConfig returns the steps for cfg in a fixed order. Steps with nothing to exclude are disabled.
func FromConfig(cfg Config) []Filter {
	return []Filter{
		NewExcludedCompanies(cfg.Companies),
		NewExcludedKeywords(cfg.Keywords),
		NewExcludeFile(cfg.ExcludeFile),
	}
}

// Run executes the supplied filters sequentially and returns the jobs left.
func Run(ctx context.Context, steps []Filter, items []jobs.RawJob, logger *zap.Logger) ([]jobs.RawJob, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		initial := len(items)
		next, err := step.Apply(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
		items = next

		info := Step{Initial: initial, Dropped: initial - len(items), Left: len(items)}
		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
	}

	return items, nil
}

// keep returns the jobs for which drop is false, preserving order.
func keep(items []jobs.RawJob, drop func(jobs.RawJob) bool) []jobs.RawJob {
	left := make([]jobs.RawJob, 0, len(items))
	for _, item := range items {
		if !drop(item) {
			left = append(left, item)
		}
	}
	return left
}
