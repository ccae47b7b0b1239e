package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stepwar/stepwar/stepwar/engine"
	"github.com/stepwar/stepwar/stepwar/logger"
)

// Runner drives the reconciler and battle/challenge settlement sweeps on a
// periodic schedule.
type Runner struct {
	scheduler  gocron.Scheduler
	reconciler *Reconciler
	projector  *engine.Projector
	interval   time.Duration
}

func NewRunner(reconciler *Reconciler, projector *engine.Projector, interval time.Duration) (*Runner, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Runner{
		scheduler:  scheduler,
		reconciler: reconciler,
		projector:  projector,
		interval:   interval,
	}, nil
}

func (r *Runner) Start() error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.interval)
			defer cancel()

			if _, err := r.reconciler.Reconcile(ctx); err != nil {
				// Transient by definition; the next tick retries.
				logger.LogError("Reconciliation pass failed", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}

	_, err = r.scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			settled, err := r.projector.SettleExpired(ctx)
			if err != nil {
				logger.LogError("Settlement sweep failed", err)
				return
			}
			if settled > 0 {
				logger.LogSync("Settlement sweep complete",
					slog.Int("settled", settled))
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule settlement sweep: %w", err)
	}

	r.scheduler.Start()
	return nil
}

func (r *Runner) Stop() error {
	return r.scheduler.Shutdown()
}
