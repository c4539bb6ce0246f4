package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/server"
)

const validateTimeout = 30 * time.Second

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and connectivity of every collaborator",
	Run: func(_ *cobra.Command, _ []string) {
		validate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validate() {
	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()

	logger := newLogger()
	config := mustConfig(logger)

	d, err := buildDeps(ctx, config, logger, true)
	if err != nil {
		logger.Fatal("building dependencies", zap.Error(err))
	}
	defer d.Close()

	errs := server.Validate(ctx, d.checks)
	if len(errs) == 0 {
		logger.Info("all connections are valid", zap.Int("checks", len(d.checks)))
		return
	}

	for _, e := range errs {
		logger.Error("validation failed", zap.String("check", e))
	}
	d.Close()
	os.Exit(1)
}
