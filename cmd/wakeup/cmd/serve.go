package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wakeup-hub/wakeup-hub/internal/app"
	"github.com/wakeup-hub/wakeup-hub/internal/infrastructure/scheduler"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

var withWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		rt, err := bootstrap(ctx, "api")
		if err != nil {
			return err
		}
		defer rt.Close()

		return serve(ctx, rt)
	},
}

//nolint:gochecknoinits // cobra registers flags in init.
func init() {
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the wake-up scheduler in this process")
}

func serve(ctx context.Context, rt *app.Runtime) error {
	log := rt.Logger

	// ─────────────────────────────────────────────────────────────────────
	// Schema
	// ─────────────────────────────────────────────────────────────────────
	if rt.Config.Database.AutoMigrate && rt.DB != nil {
		migrator, err := rt.Migrator()
		if err != nil {
			return err
		}
		applied, err := migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		log.Info("migrations applied", logger.Int("count", applied))
	}

	// ─────────────────────────────────────────────────────────────────────
	// Event subscribers
	// ─────────────────────────────────────────────────────────────────────
	planner := rt.WakePlanner()
	if err := planner.Register(rt.Bus); err != nil {
		return fmt.Errorf("register wake planner: %w", err)
	}

	// With Redis the worker owns the observers; without it nobody else sees
	// this process's events.
	if rt.Cache == nil || withWorker {
		if err := rt.SubscribeObservers(); err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────
	// Scheduler
	// ─────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if withWorker && rt.Config.Scheduler.Enabled {
		s, err := rt.Scheduler(planner)
		if err != nil {
			return err
		}
		if err := s.Start(); err != nil {
			return err
		}
		sched = s
	}

	// ─────────────────────────────────────────────────────────────────────
	// HTTP
	// ─────────────────────────────────────────────────────────────────────
	server := rt.HTTPServer()
	errCh := server.StartAsync()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", logger.Err(err))
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.Config.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("scheduler stop failed", logger.Err(err))
		}
	}

	log.Info("api stopped", logger.Duration("uptime", server.Uptime()))
	return nil
}
