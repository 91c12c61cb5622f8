/**
 * @description
 * Scheduled job implementations for the billing service.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DunningSweepTimeout bounds a single dunning sweep, scheduled or manual.
const DunningSweepTimeout = 10 * time.Minute

// DunningRunner runs the dunning sweep.
type DunningRunner interface {
	RunDunningSweep(ctx context.Context) (*DunningSweepResult, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	runner  DunningRunner
	logger  *slog.Logger
	timeout time.Duration
}

// NewJobs creates a new Jobs runner.
func NewJobs(runner DunningRunner, logger *slog.Logger) *Jobs {
	return &Jobs{
		runner:  runner,
		logger:  logger,
		timeout: DunningSweepTimeout,
	}
}

// RunDunningSweep re-evaluates open invoices against their customers'
// dunning configuration.
func (j *Jobs) RunDunningSweep() {
	j.logger.Info("starting dunning sweep job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.runner.RunDunningSweep(ctx)
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			j.logger.Info("dunning sweep already running elsewhere, skipping")
			return
		}
		j.logger.Error("failed to run dunning sweep", "error", err)
		return
	}

	j.logger.Info("dunning sweep job finished",
		"evaluated", result.Evaluated,
		"marked_overdue", result.MarkedOverdue,
		"levels_applied", result.LevelsApplied,
		"customers_suspended", result.CustomersSuspended,
		"customers_reactivated", result.CustomersReactivated,
		"failed", result.Failed,
	)
}
