package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/logger"
	"github.com/zgt/job-scout/internal/pipeline"
)

const (
	PromptYes               = "Yes"
	PromptNo                = "No"
	PromptReportByCompanies = "Report matches by company"
	PromptMatchesToFile     = "Dump matches to file"
	PromptExit              = "Exit"
)

var errExit = errors.New("exit requested")

var confirmPrompt = promptui.Select{
	Label: "Start scraping?",
	Items: []string{PromptYes, PromptNo},
}

var resultPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReportByCompanies, PromptMatchesToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape, evaluate and save one batch of jobs in the foreground",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("max-jobs", "n", 0, "maximum number of jobs to scrape (default from config)")
	runCmd.Flags().BoolP("skip-duplicates", "s", true, "skip jobs whose link is already stored")
	runCmd.Flags().IntP("concurrency", "c", 0, "number of jobs evaluated in parallel (default from config)")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func mustConfig(l *zap.Logger) *Config {
	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		l.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return config
}

func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)
	logger.Info("starting the job-scout", zap.String("version", version))

	opts := runOptions(cmd, config.Defaults)

	d, err := buildDeps(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("building dependencies", zap.Error(err))
	}
	defer d.Close()

	p, err := d.pipeline(config, logger)
	if err != nil {
		logger.Fatal("building pipeline", zap.Error(err))
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		logger.Info("about to run", zap.Int("max_jobs", opts.MaxJobs), zap.Bool("skip_duplicates", opts.SkipDuplicates))
		_, action, err := confirmPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	res, err := p.Run(ctx, opts, func(s jobs.Progress) {
		fmt.Fprintf(os.Stderr, "[%3d%%] %-10s %s\n", s.Progress, s.Stage, s.Message)
	})
	if err != nil {
		if pipeline.IsCancelled(err) {
			logger.Info("exiting", zap.String("reason", "run cancelled"))
			return
		}
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	logger.Info("run finished",
		zap.Int("jobs_found", res.JobsFound),
		zap.Int("jobs_matched", res.JobsMatched),
		zap.Int("filtered", res.Filtered),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failed", res.Failed),
	)

	if len(res.Matches) == 0 || yes {
		return
	}

	for {
		_, action, err := resultPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if err := handleAction(action, logger, res.Matches); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func runOptions(cmd *cobra.Command, defaults RunDefaults) pipeline.Options {
	opts := defaults.Options()

	if n, err := cmd.Flags().GetInt("max-jobs"); err == nil && n > 0 {
		opts.MaxJobs = n
	}
	if cmd.Flags().Changed("skip-duplicates") {
		opts.SkipDuplicates, _ = cmd.Flags().GetBool("skip-duplicates")
	}
	if c, err := cmd.Flags().GetInt("concurrency"); err == nil && c > 0 {
		opts.Concurrency = c
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = pipeline.DefaultMaxJobs
	}

	return opts
}

func handleAction(action string, logger *zap.Logger, matches []jobs.ProcessedJob) error {
	switch action {
	case PromptExit:
		return errExit
	case PromptReportByCompanies:
		pretty, _ := json.MarshalIndent(jobs.ReportByCompany(matches), "", "  ")
		logger.Info(string(pretty), zap.Int("matches count", len(matches)))
		return nil
	case PromptMatchesToFile:
		filename, err := jobs.DumpToTmpFile(matches)
		if err != nil {
			return fmt.Errorf("dump matches to file: %w", err)
		}
		logger.Info("dumping matches to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}
