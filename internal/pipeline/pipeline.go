// Package pipeline drives one scrape, evaluate and save batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zgt/job-scout/internal/ai"
	"github.com/zgt/job-scout/internal/filtering"
	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/logger"
	"github.com/zgt/job-scout/internal/scrape"
	"github.com/zgt/job-scout/internal/store"
	"github.com/zgt/job-scout/internal/utils"
)

const (
	DefaultMaxJobs = 25

	progressScraping      = 10
	progressEvaluating    = 30
	progressEvaluatingEnd = 80
	progressSaving        = 85
	progressDone          = 100
)

// Scraper fetches raw postings.
type Scraper interface {
	Scrape(ctx context.Context, search scrape.SearchConfig) ([]jobs.RawJob, error)
}

// Notifier is told about the jobs saved by a successful run.
type Notifier interface {
	Notify(ctx context.Context, matches []jobs.ProcessedJob) error
}

// Config holds the settings that do not change between runs.
type Config struct {
	Search scrape.SearchDefaults `mapstructure:"search"`
	// Delay is the pause after every evaluator call.
	Delay           time.Duration `mapstructure:"delay"`
	EvaluateTimeout time.Duration `mapstructure:"evaluate-timeout"`
	StoreTimeout    time.Duration `mapstructure:"store-timeout"`
}

// Options are chosen per run.
type Options struct {
	MaxJobs        int  `json:"maxJobs"`
	SkipDuplicates bool `json:"skipDuplicates"`
	// Concurrency above 1 evaluates jobs in parallel. Matches keep scrape order.
	Concurrency int `json:"concurrency,omitempty"`
}

// Result summarizes a finished run.
type Result struct {
	JobsFound   int
	JobsMatched int
	Duplicates  int
	// Filtered counts jobs dropped by the filters before evaluation.
	Filtered int
	Failed   int
	Matches  []jobs.ProcessedJob
}

type Pipeline struct {
	store     store.Store
	scraper   Scraper
	evaluator ai.Evaluator
	notifier  Notifier
	filters   []filtering.Filter
	cfg       Config
	logger    *zap.Logger
}

func New(st store.Store, scraper Scraper, evaluator ai.Evaluator, cfg Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:     st,
		scraper:   scraper,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    log,
	}
}

// WithNotifier sets the notifier called after matches are saved.
func (p *Pipeline) WithNotifier(n Notifier) *Pipeline {
	p.notifier = n
	return p
}

// WithFilters sets the steps applied to scraped jobs before evaluation.
func (p *Pipeline) WithFilters(steps ...filtering.Filter) *Pipeline {
	p.filters = steps
	return p
}

// Run executes the batch. onProgress is called synchronously at every stage boundary and
// after every evaluated job; the last call always carries a terminal stage.
func (p *Pipeline) Run(ctx context.Context, opts Options, onProgress func(jobs.Progress)) (*Result, error) {
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = DefaultMaxJobs
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if onProgress == nil {
		onProgress = func(jobs.Progress) {}
	}

	r := &reporter{emit: onProgress}
	res, err := p.run(ctx, opts, r)
	if err != nil {
		p.logger.Error("pipeline failed", logger.Stage(string(jobs.StageError)), zap.Error(err))
		r.report(jobs.StageError, r.last.Progress, "Pipeline failed: "+err.Error(), func(s *jobs.Progress) {
			s.Error = err.Error()
		})
		return res, err
	}

	r.report(jobs.StageCompleted, progressDone,
		fmt.Sprintf("Completed: %d of %d jobs matched", res.JobsMatched, res.JobsFound), nil)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, opts Options, r *reporter) (*Result, error) {
	res := &Result{}

	if err := p.withStoreTimeout(ctx, p.store.EnsureHeaders); err != nil {
		return res, fmt.Errorf("prepare store: %w", err)
	}

	seen := jobs.LinkSet{}
	if opts.SkipDuplicates {
		var existing []jobs.ProcessedJob
		err := p.withStoreTimeout(ctx, func(ctx context.Context) error {
			var err error
			existing, err = p.store.ReadAll(ctx)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("load existing jobs: %w", err)
		}
		seen = jobs.NewLinkSet(existing)
		p.logger.Info("loaded existing jobs", zap.Int("count", len(existing)))
	}

	r.report(jobs.StageScraping, progressScraping, "Scraping job postings", nil)
	p.logger.Info("scraping", logger.Stage(string(jobs.StageScraping)), zap.Int("max_jobs", opts.MaxJobs))

	raws, err := p.scraper.Scrape(ctx, scrape.DefaultSearch(opts.MaxJobs, p.cfg.Search))
	if err != nil {
		return res, err
	}
	res.JobsFound = len(raws)

	if len(p.filters) > 0 {
		kept, err := filtering.Run(ctx, p.filters, raws, p.logger)
		if err != nil {
			return res, fmt.Errorf("filter jobs: %w", err)
		}
		res.Filtered = len(raws) - len(kept)
		raws = kept
	}

	r.report(jobs.StageEvaluating, progressEvaluating, fmt.Sprintf("Evaluating %d jobs", len(raws)), func(s *jobs.Progress) {
		s.JobsFound = res.JobsFound
	})
	p.logger.Info("evaluating", logger.Stage(string(jobs.StageEvaluating)),
		zap.Int("jobs", len(raws)), zap.Int("concurrency", opts.Concurrency))

	matches, err := p.evaluateAll(ctx, raws, seen, opts.Concurrency, r, res)
	if err != nil {
		return res, err
	}
	res.Matches = matches
	res.JobsMatched = len(matches)

	p.logger.Info("evaluation step",
		zap.Int("initial", res.JobsFound),
		zap.Int("filtered", res.Filtered),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failed", res.Failed),
		zap.Int("matched", res.JobsMatched),
	)

	r.report(jobs.StageSaving, progressSaving, fmt.Sprintf("Saving %d matched jobs", len(matches)), func(s *jobs.Progress) {
		s.JobsMatched = len(matches)
	})

	if len(matches) > 0 {
		if err := p.withStoreTimeout(ctx, func(ctx context.Context) error {
			return p.store.Append(ctx, matches)
		}); err != nil {
			return res, fmt.Errorf("save matches: %w", err)
		}

		if p.notifier != nil {
			if err := p.notifier.Notify(ctx, matches); err != nil {
				p.logger.Warn("notification failed", zap.Error(err))
			}
		}
	}

	return res, nil
}

// evaluateAll returns the fitting jobs in scrape order.
func (p *Pipeline) evaluateAll(ctx context.Context, raws []jobs.RawJob, seen jobs.LinkSet, concurrency int, r *reporter, res *Result) ([]jobs.ProcessedJob, error) {
	results := make([]*jobs.ProcessedJob, len(raws))
	var (
		mu   sync.Mutex
		done int
	)

	step := func(ctx context.Context, i int) error {
		raw := raws[i]
		duplicate := seen.Contains(raw.ApplyURL)

		var (
			match  *jobs.ProcessedJob
			failed bool
		)
		if !duplicate {
			match, failed = p.evaluate(ctx, raw)
		}

		mu.Lock()
		results[i] = match
		done++
		if duplicate {
			res.Duplicates++
		}
		if failed {
			res.Failed++
		}
		r.report(jobs.StageEvaluating, interpolate(done, len(raws)),
			fmt.Sprintf("Evaluated %d of %d jobs", done, len(raws)), nil)
		mu.Unlock()

		if duplicate || i == len(raws)-1 {
			return ctx.Err()
		}
		return utils.WaitFor(ctx, p.cfg.Delay)
	}

	if concurrency <= 1 {
		for i := range raws {
			if err := step(ctx, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i := range raws {
			g.Go(func() error { return step(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	matches := make([]jobs.ProcessedJob, 0, len(raws))
	for _, m := range results {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches, nil
}

// evaluate returns the processed job for a fit, nil otherwise. Evaluator errors are logged and
// count as no match.
func (p *Pipeline) evaluate(ctx context.Context, raw jobs.RawJob) (*jobs.ProcessedJob, bool) {
	if p.cfg.EvaluateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.EvaluateTimeout)
		defer cancel()
	}

	ev, err := p.evaluator.Evaluate(ctx, raw)
	if err != nil {
		p.logger.Warn("evaluation failed, treating as no match",
			zap.String("title", raw.Title),
			zap.String("company", raw.CompanyName),
			zap.Error(err),
		)
		return nil, true
	}
	if ev == nil || !ev.Fit {
		p.logger.Debug("job is not a fit", zap.String("title", raw.Title), zap.String("company", raw.CompanyName))
		return nil, false
	}

	job := jobs.NewProcessedJob(raw, *ev)
	p.logger.Info("job matched",
		zap.String("role", job.Role),
		zap.String("company", job.Company),
		zap.Int("rating", ev.Rating),
	)
	return &job, false
}

func (p *Pipeline) withStoreTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.StoreTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func interpolate(done, total int) int {
	if total == 0 {
		return progressEvaluatingEnd
	}
	return progressEvaluating + (progressEvaluatingEnd-progressEvaluating)*done/total
}

// reporter keeps the counts of earlier snapshots so every update is complete.
type reporter struct {
	emit func(jobs.Progress)
	last jobs.Progress
}

func (r *reporter) report(stage jobs.Stage, progress int, message string, mutate func(*jobs.Progress)) {
	s := r.last
	s.Stage = stage
	s.Progress = progress
	s.Message = message
	s.IsRunning = !stage.Terminal()
	s.Error = ""
	if mutate != nil {
		mutate(&s)
	}
	r.last = s
	r.emit(s)
}

// IsCancelled reports whether err comes from a cancelled or expired run.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
