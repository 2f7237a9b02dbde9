// Package liveness releases queue entries held by worker processes that
// stopped sending heartbeats.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crawlqueue/internal/logging"
)

// ExpiredSource reports dead processes. An id keeps being reported until it
// is acknowledged.
type ExpiredSource interface {
	Expired(ctx context.Context) ([]string, error)
	Acknowledge(ctx context.Context, processIDs []string) ([]string, error)
}

// Releaser returns the pending entries of the given processes to the
// unassigned pool.
type Releaser interface {
	UnsetProcessScheduledAndProcessIDForQueueEntries(ctx context.Context, processIDs []string) (int64, error)
}

// Result summarizes one sweep.
type Result struct {
	Expired  []string
	Released int64
}

// Reaper connects the process registry to the queue store.
type Reaper struct {
	source   ExpiredSource
	releaser Releaser
	logger   *slog.Logger
}

// NewReaper builds a Reaper. A nil logger discards output.
func NewReaper(source ExpiredSource, releaser Releaser, logger *slog.Logger) *Reaper {
	return &Reaper{
		source:   source,
		releaser: releaser,
		logger:   logging.NewComponentLogger(logger, "reaper"),
	}
}

// Sweep releases the entries of every expired process, then acknowledges the
// processes so later sweeps skip them. Release is idempotent, so a sweep that
// fails before acknowledging is safe to repeat.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	expired, err := r.source.Expired(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list expired processes: %w", err)
	}
	if len(expired) == 0 {
		return Result{}, nil
	}

	released, err := r.releaser.UnsetProcessScheduledAndProcessIDForQueueEntries(ctx, expired)
	if err != nil {
		return Result{Expired: expired}, fmt.Errorf("release entries of expired processes: %w", err)
	}
	if _, err := r.source.Acknowledge(ctx, expired); err != nil {
		return Result{Expired: expired, Released: released}, fmt.Errorf("acknowledge expired processes: %w", err)
	}
	r.logger.Info("released entries of expired processes",
		slog.Any("process_ids", expired),
		slog.Int64("released", released),
	)
	return Result{Expired: expired, Released: released}, nil
}

// Run sweeps every interval until ctx is cancelled. Sweep failures are logged
// and the loop continues.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("reaper interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logging.WarnWithContext(r.logger, "liveness sweep failed", "reaper_sweep_failed",
					logging.Error(err),
					slog.String(logging.FieldErrorHint, "check redis and queue store connectivity"),
				)
			}
		}
	}
}
