package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zgt/job-scout/internal/filtering"
	"github.com/zgt/job-scout/internal/pipeline"
	"github.com/zgt/job-scout/internal/runs"
	"github.com/zgt/job-scout/internal/scrape"
	"github.com/zgt/job-scout/internal/server"
)

const (
	app       = "job-scout"
	envPrefix = "JOB_SCOUT"
)

type Config struct {
	Store    StoreConfig      `mapstructure:"store"`
	Scrape   ScrapeConfig     `mapstructure:"scrape"`
	AI       AIConfig         `mapstructure:"ai"`
	Pipeline pipeline.Config  `mapstructure:"pipeline"`
	Filters  filtering.Config `mapstructure:"filters"`
	Defaults RunDefaults      `mapstructure:"defaults"`
	Runs     runs.Config      `mapstructure:"runs"`
	Server   server.Config    `mapstructure:"server"`
	Redis    RedisConfig      `mapstructure:"redis"`
	Telegram TelegramConfig   `mapstructure:"telegram"`
	Schedule ScheduleConfig   `mapstructure:"schedule"`
}

type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	XLSX     XLSXConfig     `mapstructure:"xlsx"`
	Sheets   SheetsConfig   `mapstructure:"gsheets"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type XLSXConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet-id"`
	Sheet           string `mapstructure:"sheet"`
	CredentialsFile string `mapstructure:"credentials-file"`
}

type PostgresConfig struct {
	URL     string `mapstructure:"url"`
	URLFile string `mapstructure:"url-file"`
}

type ScrapeConfig struct {
	BaseURL   string        `mapstructure:"base-url"`
	Actor     string        `mapstructure:"actor"`
	Token     string        `mapstructure:"token"`
	TokenFile string        `mapstructure:"token-file"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type AIConfig struct {
	Provider     string       `mapstructure:"provider"`
	ProfileFile  string       `mapstructure:"profile-file"`
	MaxLogLength int          `mapstructure:"max-log-length"`
	Retry        RetryConfig  `mapstructure:"retry"`
	Gemini       GeminiConfig `mapstructure:"gemini"`
	OpenAI       OpenAIConfig `mapstructure:"openai"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	MaxDelay    time.Duration `mapstructure:"max-delay"`
}

type GeminiConfig struct {
	APIKey      string        `mapstructure:"api-key"`
	APIKeyFile  string        `mapstructure:"api-key-file"`
	Model       string        `mapstructure:"model"`
	Temperature *float32      `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	BaseURL     string        `mapstructure:"base-url"`
	APIKey      string        `mapstructure:"api-key"`
	APIKeyFile  string        `mapstructure:"api-key-file"`
	Model       string        `mapstructure:"model"`
	Temperature *float64      `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RunDefaults are used when a run does not choose its own options.
type RunDefaults struct {
	MaxJobs        int  `mapstructure:"max-jobs"`
	SkipDuplicates bool `mapstructure:"skip-duplicates"`
	Concurrency    int  `mapstructure:"concurrency"`
}

func (d RunDefaults) Options() pipeline.Options {
	return pipeline.Options{MaxJobs: d.MaxJobs, SkipDuplicates: d.SkipDuplicates, Concurrency: d.Concurrency}
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	URLFile string `mapstructure:"url-file"`
	Channel string `mapstructure:"channel"`
}

type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	ChatID    int64  `mapstructure:"chat-id"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-scout scrapes job postings, scores them against your profile with an LLM and keeps the matches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-scout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every key so that JOB_SCOUT_* variables are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "xlsx")
	v.SetDefault("store.xlsx.path", "jobs.xlsx")
	v.SetDefault("store.xlsx.sheet", "")
	v.SetDefault("store.gsheets.spreadsheet-id", "")
	v.SetDefault("store.gsheets.sheet", "")
	v.SetDefault("store.gsheets.credentials-file", "")
	v.SetDefault("store.postgres.url", "")
	v.SetDefault("store.postgres.url-file", "")

	v.SetDefault("scrape.base-url", "")
	v.SetDefault("scrape.actor", "")
	v.SetDefault("scrape.token", "")
	v.SetDefault("scrape.token-file", "")
	v.SetDefault("scrape.timeout", 5*time.Minute)

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.profile-file", "")
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.retry.max-attempts", 3)
	v.SetDefault("ai.retry.backoff", 2*time.Second)
	v.SetDefault("ai.retry.max-delay", time.Minute)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.openai.base-url", "")
	v.SetDefault("ai.openai.api-key", "")
	v.SetDefault("ai.openai.api-key-file", "")
	v.SetDefault("ai.openai.model", "")

	v.SetDefault("pipeline.search.urls", []string{scrape.DefaultSearchURL})
	v.SetDefault("pipeline.search.country-code", 0)
	v.SetDefault("pipeline.search.scrape-company", true)
	v.SetDefault("pipeline.delay", time.Second)
	v.SetDefault("pipeline.evaluate-timeout", 2*time.Minute)
	v.SetDefault("pipeline.store-timeout", 30*time.Second)

	v.SetDefault("filters.companies", []string{})
	v.SetDefault("filters.keywords", []string{})
	v.SetDefault("filters.exclude-file", "")

	v.SetDefault("defaults.max-jobs", pipeline.DefaultMaxJobs)
	v.SetDefault("defaults.skip-duplicates", true)
	v.SetDefault("defaults.concurrency", 1)

	v.SetDefault("runs.run-timeout", 30*time.Minute)
	v.SetDefault("runs.history", 20)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.url-file", "")
	v.SetDefault("redis.channel", runs.DefaultChannel)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.token-file", "")
	v.SetDefault("telegram.chat-id", 0)

	v.SetDefault("schedule.cron", "")
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env is fine, it only seeds the process environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")

	// Defaults and the environment are enough to run without a config file.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
