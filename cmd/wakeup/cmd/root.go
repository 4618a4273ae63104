// Package cmd holds the wakeup command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wakeup-hub/wakeup-hub/config"
	"github.com/wakeup-hub/wakeup-hub/internal/app"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	// configPath to the YAML overlay. Empty falls back to CONFIG_FILE.
	configPath string

	rootCmd = &cobra.Command{
		Use:           "wakeup",
		Short:         "Alarm, sleep and wake-up challenge service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // cobra registers flags and subcommands in init.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// bootstrap loads the configuration and builds the runtime. The logger of a
// failed load goes to stderr with defaults.
func bootstrap(ctx context.Context, component string) (*app.Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Default().Error("failed to load config", logger.Err(err))
		return nil, err
	}
	if cfg.App.Version == "" || version != "dev" {
		cfg.App.Version = version
	}

	log := app.NewLogger(cfg).With(logger.Component(component))
	log.Info("starting",
		logger.String("version", cfg.App.Version),
		logger.String("db_driver", cfg.Database.Driver),
		logger.Bool("redis", !cfg.Redis.Disabled),
	)

	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", logger.Err(err))
		return nil, err
	}
	return rt, nil
}
