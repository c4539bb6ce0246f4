package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/pipeline"
	"github.com/zgt/job-scout/internal/server"
)

func decodeConfig(t *testing.T, yaml string) *Config {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := decodeConfig(t, "")

	if cfg.Store.Backend != "xlsx" || cfg.Store.XLSX.Path != "jobs.xlsx" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.AI.Provider != "gemini" || cfg.AI.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected ai defaults: %+v", cfg.AI)
	}
	if cfg.Defaults.MaxJobs != pipeline.DefaultMaxJobs || !cfg.Defaults.SkipDuplicates {
		t.Fatalf("unexpected run defaults: %+v", cfg.Defaults)
	}
	if cfg.Pipeline.StoreTimeout != 30*time.Second || cfg.Runs.History != 20 {
		t.Fatalf("unexpected durations: %+v %+v", cfg.Pipeline, cfg.Runs)
	}
	if len(cfg.Pipeline.Search.URLs) != 1 {
		t.Fatalf("expected default search url, got %v", cfg.Pipeline.Search.URLs)
	}
}

func TestConfigFromYAML(t *testing.T) {
	cfg := decodeConfig(t, `
store:
  backend: postgres
  postgres:
    url-file: /run/secrets/db
ai:
  provider: openai
  openai:
    model: gpt-4o
    temperature: 0
    timeout: 45s
pipeline:
  delay: 250ms
  search:
    urls: ["https://www.linkedin.com/jobs/search/?keywords=go"]
    country-code: 104
filters:
  companies: [Globex]
  keywords: [intern, java]
defaults:
  max-jobs: 40
  concurrency: 4
telegram:
  chat-id: -100123
schedule:
  cron: "@every 6h"
`)

	if cfg.Store.Backend != "postgres" || cfg.Store.Postgres.URLFile != "/run/secrets/db" {
		t.Fatalf("unexpected store: %+v", cfg.Store)
	}
	if cfg.AI.OpenAI.Model != "gpt-4o" || cfg.AI.OpenAI.Timeout != 45*time.Second {
		t.Fatalf("unexpected openai config: %+v", cfg.AI.OpenAI)
	}
	if cfg.Pipeline.Delay != 250*time.Millisecond || cfg.Pipeline.Search.CountryCode != 104 {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}

	if len(cfg.Filters.Companies) != 1 || len(cfg.Filters.Keywords) != 2 {
		t.Fatalf("unexpected filters: %+v", cfg.Filters)
	}

	want := pipeline.Options{MaxJobs: 40, SkipDuplicates: true, Concurrency: 4}
	if got := cfg.Defaults.Options(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if cfg.AI.OpenAI.Temperature == nil || *cfg.AI.OpenAI.Temperature != 0 || cfg.AI.Gemini.Temperature != nil {
		t.Fatalf("unexpected temperatures: %v %v", cfg.AI.OpenAI.Temperature, cfg.AI.Gemini.Temperature)
	}
	if cfg.Telegram.ChatID != -100123 || cfg.Schedule.Cron != "@every 6h" {
		t.Fatalf("unexpected telegram/schedule: %+v %+v", cfg.Telegram, cfg.Schedule)
	}
}

func newRunFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	c := &cobra.Command{Use: "run"}
	c.Flags().IntP("max-jobs", "n", 0, "")
	c.Flags().BoolP("skip-duplicates", "s", true, "")
	c.Flags().IntP("concurrency", "c", 0, "")
	if err := c.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return c
}

func TestRunOptions(t *testing.T) {
	defaults := RunDefaults{MaxJobs: 30, SkipDuplicates: true, Concurrency: 2}

	if got := runOptions(newRunFlags(t), defaults); got != defaults.Options() {
		t.Fatalf("expected config defaults, got %+v", got)
	}

	got := runOptions(newRunFlags(t, "--max-jobs=5", "--skip-duplicates=false", "-c", "3"), defaults)
	want := pipeline.Options{MaxJobs: 5, SkipDuplicates: false, Concurrency: 3}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if got := runOptions(newRunFlags(t), RunDefaults{}); got.MaxJobs != pipeline.DefaultMaxJobs {
		t.Fatalf("expected fallback max jobs, got %d", got.MaxJobs)
	}
}

func TestHandleAction(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	matches := []jobs.ProcessedJob{{Role: "Dev", Company: "Acme", JobLink: "https://acme.example/1", Rating: 8}}

	if err := handleAction(PromptExit, logger, matches); !errors.Is(err, errExit) {
		t.Fatalf("expected errExit, got %v", err)
	}
	if err := handleAction(PromptReportByCompanies, logger, matches); err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := handleAction(PromptMatchesToFile, logger, matches); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if logs.FilterMessage("dumping matches to file").Len() != 1 {
		t.Fatalf("expected dump log, got %v", logs.All())
	}
	if err := handleAction("bogus", logger, matches); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestNewStoreRejectsUnknownBackend(t *testing.T) {
	if _, err := newStore(context.Background(), StoreConfig{Backend: "mongo"}, zap.NewNop(), &deps{}); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestNewCompleterRejectsUnknownProvider(t *testing.T) {
	if _, err := newCompleter(context.Background(), AIConfig{Provider: "llama"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestOptionalCollaboratorsDisabled(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("REDIS_URL", "")

	n, err := newNotifier(TelegramConfig{}, zap.NewNop())
	if err != nil || n != nil {
		t.Fatalf("expected disabled notifier, got %v %v", n, err)
	}

	p, err := newPublisher(context.Background(), RedisConfig{}, &deps{})
	if err != nil || p != nil {
		t.Fatalf("expected disabled publisher, got %v %v", p, err)
	}
}

func TestBuildDepsLenientReportsFailures(t *testing.T) {
	t.Setenv("APIFY_API_TOKEN", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("REDIS_URL", "")

	cfg := decodeConfig(t, "store:\n  xlsx:\n    path: "+t.TempDir()+"/jobs.xlsx\n")

	d, err := buildDeps(context.Background(), cfg, zap.NewNop(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	names := make([]string, 0, len(d.checks))
	for _, c := range d.checks {
		names = append(names, c.Name)
	}
	if got := strings.Join(names, ","); got != "store,scraper,ai" {
		t.Fatalf("unexpected checks: %s", got)
	}
	if _, err := d.pipeline(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected pipeline to require scraper and ai")
	}

	if _, err := buildDeps(context.Background(), cfg, zap.NewNop(), false); err == nil {
		t.Fatal("expected strict build to fail without a scrape token")
	}
}

func TestValidateChecksAIBackend(t *testing.T) {
	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	t.Setenv("APIFY_API_TOKEN", "apify")
	t.Setenv("OPENAI_API_KEY", "revoked")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("REDIS_URL", "")

	cfg := decodeConfig(t, "store:\n  xlsx:\n    path: "+t.TempDir()+"/jobs.xlsx\n"+
		"ai:\n  provider: openai\n  openai:\n    base-url: "+srv.URL+"\n")

	d, err := buildDeps(context.Background(), cfg, zap.NewNop(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()

	var aiCheck server.Check
	for _, c := range d.checks {
		if c.Name == "ai" {
			aiCheck = c
		}
	}
	if aiCheck.Ping == nil {
		t.Fatal("expected an ai check")
	}

	errs := server.Validate(context.Background(), []server.Check{aiCheck})
	if len(errs) != 1 || !strings.Contains(errs[0], "401") {
		t.Fatalf("expected ai validation to fail with 401, got %v", errs)
	}
	if pings.Load() != 1 {
		t.Fatalf("expected one request to the model backend, got %d", pings.Load())
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "job-scout version: unknown") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
