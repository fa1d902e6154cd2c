// Package scheduler drives periodic early-stopping evaluation across all
// running experiments.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/service"
	id "splitlab/pkg/domain"
)

// Lister enumerates experiments by status.
type Lister interface {
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Experiment, error)
}

// Evaluator runs one sequential evaluation.
type Evaluator interface {
	EvaluateEarlyStop(ctx context.Context, experimentID id.ExperimentID) (service.StopDecision, error)
}

// Scheduler sweeps running experiments on a fixed interval. One failing
// experiment never aborts the sweep; it is logged and the loop moves on.
type Scheduler struct {
	lister    Lister
	evaluator Evaluator
	interval  time.Duration
	logger    *slog.Logger
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func New(lister Lister, evaluator Evaluator, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		lister:    lister,
		evaluator: evaluator,
		interval:  interval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep evaluates every running experiment once. Exported for testability;
// Run passes ticker time.
func (s *Scheduler) Sweep(ctx context.Context) {
	running, err := s.lister.ListByStatus(ctx, models.StatusRunning)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list running experiments", "error", err)
		return
	}

	for _, exp := range running {
		if !exp.Config.EarlyStopping.Enabled {
			continue
		}
		decision, err := s.evaluator.EvaluateEarlyStop(ctx, exp.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "early stopping evaluation failed",
				"experiment_id", exp.ID, "error", err)
			continue
		}
		if decision.Stopped {
			s.logger.InfoContext(ctx, "scheduler stopped experiment",
				"experiment_id", exp.ID, "reason", decision.Reason)
		}
	}
}
