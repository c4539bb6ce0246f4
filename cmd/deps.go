package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/ai"
	"github.com/zgt/job-scout/internal/ai/gemini"
	"github.com/zgt/job-scout/internal/ai/openai"
	"github.com/zgt/job-scout/internal/filtering"
	"github.com/zgt/job-scout/internal/notify"
	"github.com/zgt/job-scout/internal/pipeline"
	"github.com/zgt/job-scout/internal/runs"
	"github.com/zgt/job-scout/internal/scrape"
	"github.com/zgt/job-scout/internal/secrets"
	"github.com/zgt/job-scout/internal/server"
	"github.com/zgt/job-scout/internal/store"
	"github.com/zgt/job-scout/internal/store/gsheets"
	"github.com/zgt/job-scout/internal/store/postgres"
	"github.com/zgt/job-scout/internal/store/xlsx"
)

// deps holds the collaborators built from the config for one command.
type deps struct {
	store     store.Store
	scraper   *scrape.Client
	evaluator ai.Evaluator
	notifier  *notify.Telegram
	publisher *runs.RedisPublisher

	checks  []server.Check
	closers []func()
}

func (d *deps) addCheck(name string, ping func(ctx context.Context) error) {
	d.checks = append(d.checks, server.Check{Name: name, Ping: ping})
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func newStore(ctx context.Context, cfg StoreConfig, logger *zap.Logger, d *deps) (store.Store, error) {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	logger = logger.With(zap.String("store", backend))

	switch backend {
	case "", "xlsx":
		return xlsx.New(cfg.XLSX.Path, cfg.XLSX.Sheet, logger)
	case "gsheets":
		creds, err := secrets.Load(secrets.Source{
			Name: "google credentials",
			File: cfg.Sheets.CredentialsFile,
			Env:  "GOOGLE_SHEETS_CREDENTIALS",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set store.gsheets.credentials-file)", err)
		}
		return gsheets.New(ctx, gsheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			Sheet:           cfg.Sheets.Sheet,
			CredentialsJSON: []byte(creds),
		}, logger)
	case "postgres":
		url, err := secrets.Load(secrets.Source{
			Name:  "postgres url",
			Value: cfg.Postgres.URL,
			File:  cfg.Postgres.URLFile,
			Env:   "DATABASE_URL",
		})
		if err != nil {
			return nil, err
		}
		pool, err := postgres.NewPool(ctx, url)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		return postgres.New(pool, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func newScraper(cfg ScrapeConfig, logger *zap.Logger) (*scrape.Client, error) {
	token, err := secrets.Load(secrets.Source{
		Name:  "apify token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "APIFY_API_TOKEN",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set scrape.token-file or APIFY_API_TOKEN)", err)
	}

	return scrape.New(scrape.Config{
		BaseURL: cfg.BaseURL,
		Actor:   cfg.Actor,
		Token:   token,
		Timeout: cfg.Timeout,
	}, logger.Named("scrape"))
}

func newCompleter(ctx context.Context, cfg AIConfig, logger *zap.Logger) (ai.Completer, error) {
	retry := ai.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff,
		MaxDelay:    cfg.Retry.MaxDelay,
	}

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		return gemini.NewGenerator(ctx, gemini.Config{
			APIKey:      apiKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
			Timeout:     cfg.Gemini.Timeout,
			Retry:       retry,
		}, logger)
	case "openai":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		return openai.New(openai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      apiKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
			Retry:       retry,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func newEvaluator(ctx context.Context, cfg AIConfig, logger *zap.Logger) (*ai.JobEvaluator, error) {
	completer, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	profile, err := ai.LoadProfile(cfg.ProfileFile)
	if err != nil {
		return nil, err
	}

	return ai.NewJobEvaluator(completer, profile, logger, cfg.MaxLogLength), nil
}

// newNotifier returns nil when telegram is not configured.
func newNotifier(cfg TelegramConfig, logger *zap.Logger) (*notify.Telegram, error) {
	token, err := secrets.Optional(secrets.Source{
		Name:  "telegram token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "TELEGRAM_BOT_TOKEN",
	})
	if err != nil {
		return nil, err
	}
	if token == "" || cfg.ChatID == 0 {
		return nil, nil
	}

	return notify.NewTelegram(token, cfg.ChatID, logger.Named("telegram"))
}

// newPublisher returns nil when redis is not configured.
func newPublisher(ctx context.Context, cfg RedisConfig, d *deps) (*runs.RedisPublisher, error) {
	url, err := secrets.Optional(secrets.Source{
		Name:  "redis url",
		Value: cfg.URL,
		File:  cfg.URLFile,
		Env:   "REDIS_URL",
	})
	if err != nil || url == "" {
		return nil, err
	}

	rdb, err := runs.NewRedisClient(ctx, url)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	d.addCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	return runs.NewRedisPublisher(rdb, cfg.Channel), nil
}

// buildDeps wires everything a pipeline run needs. With lenient set, a collaborator that fails to
// build is reported as a check failure instead of aborting.
func buildDeps(ctx context.Context, cfg *Config, logger *zap.Logger, lenient bool) (*deps, error) {
	d := &deps{}
	fail := func(name string, err error) error {
		if !lenient {
			d.Close()
			return fmt.Errorf("%s: %w", name, err)
		}
		d.addCheck(name, func(context.Context) error { return err })
		return nil
	}

	st, err := newStore(ctx, cfg.Store, logger, d)
	if err != nil {
		if err := fail("store", err); err != nil {
			return nil, err
		}
	} else {
		d.store = st
		d.addCheck("store", st.Ping)
	}

	scraper, err := newScraper(cfg.Scrape, logger)
	if err != nil {
		if err := fail("scraper", err); err != nil {
			return nil, err
		}
	} else {
		d.scraper = scraper
		d.addCheck("scraper", scraper.Ping)
	}

	evaluator, err := newEvaluator(ctx, cfg.AI, logger)
	if err != nil {
		if err := fail("ai", err); err != nil {
			return nil, err
		}
	} else {
		d.evaluator = evaluator
		d.addCheck("ai", evaluator.Ping)
	}

	notifier, err := newNotifier(cfg.Telegram, logger)
	if err != nil {
		if err := fail("telegram", err); err != nil {
			return nil, err
		}
	} else if notifier != nil {
		d.notifier = notifier
		d.addCheck("telegram", notifier.Ping)
	}

	publisher, err := newPublisher(ctx, cfg.Redis, d)
	if err != nil {
		if err := fail("redis", err); err != nil {
			return nil, err
		}
	} else {
		d.publisher = publisher
	}

	return d, nil
}

func (d *deps) pipeline(cfg *Config, logger *zap.Logger) (*pipeline.Pipeline, error) {
	if d.store == nil || d.scraper == nil || d.evaluator == nil {
		return nil, errors.New("store, scraper and ai must be configured to run the pipeline")
	}

	p := pipeline.New(d.store, d.scraper, d.evaluator, cfg.Pipeline, logger.Named("pipeline")).
		WithFilters(filtering.FromConfig(cfg.Filters)...)
	if d.notifier != nil {
		p.WithNotifier(d.notifier)
	}
	return p, nil
}
