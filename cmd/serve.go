package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/runs"
	"github.com/zgt/job-scout/internal/scheduler"
	"github.com/zgt/job-scout/internal/server"
)

const runShutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled scrapes",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("cron", "", "cron spec for scheduled runs, e.g. \"0 9 * * 1-5\" or \"@every 6h\"")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("schedule.cron", serveCmd.Flags().Lookup("cron"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)
	logger.Info("starting the job-scout server", zap.String("version", version))

	d, err := buildDeps(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("building dependencies", zap.Error(err))
	}
	defer d.Close()

	p, err := d.pipeline(config, logger)
	if err != nil {
		logger.Fatal("building pipeline", zap.Error(err))
	}

	registry := runs.New(p, config.Runs, logger.Named("runs"))
	if d.publisher != nil {
		registry.WithPublisher(d.publisher)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), runShutdownTimeout)
		defer cancel()
		if err := registry.Shutdown(ctx); err != nil {
			logger.Warn("active run did not stop in time", zap.Error(err))
		}
	}()

	defaults := config.Defaults.Options()

	if spec := config.Schedule.Cron; spec != "" {
		sched := scheduler.New(spec, registry, defaults, logger)
		if err := sched.Start(); err != nil {
			logger.Fatal("starting scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	handler := server.NewHandler(registry, d.store, d.checks, defaults, logger.Named("http"))
	if err := server.New(config.Server, handler, logger).Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
