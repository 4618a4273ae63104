package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wakeup-hub/wakeup-hub/internal/app"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

var runOnce bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deliver due wake-ups and keep the wake schedule fresh",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		rt, err := bootstrap(ctx, "worker")
		if err != nil {
			return err
		}
		defer rt.Close()

		return work(ctx, rt)
	},
}

//nolint:gochecknoinits // cobra registers flags in init.
func init() {
	workerCmd.Flags().BoolVar(&runOnce, "once", false, "run every job once and exit")
}

func work(ctx context.Context, rt *app.Runtime) error {
	log := rt.Logger

	if rt.Cache == nil {
		log.Warn("redis disabled; the worker only sees wake-ups planned by itself")
	}

	planner := rt.WakePlanner()
	if err := planner.Register(rt.Bus); err != nil {
		return fmt.Errorf("register wake planner: %w", err)
	}
	if err := rt.SubscribeObservers(); err != nil {
		return err
	}

	sched, err := rt.Scheduler(planner)
	if err != nil {
		return err
	}

	if runOnce {
		var errs []error
		for _, job := range sched.ListJobs() {
			if _, err := sched.RunNow(ctx, job.Name); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
			}
		}
		return errors.Join(errs...)
	}

	if !rt.Config.Scheduler.Enabled {
		return errors.New("scheduler is disabled (SCHEDULER_ENABLED=false)")
	}
	if err := sched.Start(); err != nil {
		return err
	}
	for _, job := range sched.ListJobs() {
		log.Info("job scheduled",
			logger.String("job", job.Name),
			logger.String("schedule", job.Schedule),
			logger.Time("next_run", job.NextRun),
		)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), rt.Config.App.ShutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}
