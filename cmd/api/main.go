package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

var configPaths []string

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clinic-api",
		Short:         "Clinic scheduling and records API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&configPaths, "config-path", nil, "directories searched for config.yaml")
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

// loadConfig reads .env when present, then the config file and environment,
// and configures the global logger.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.LoadConfig(configPaths...)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return nil, err
	}

	if _, err := logger.Setup(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}); err != nil {
		return nil, err
	}
	return cfg, nil
}
