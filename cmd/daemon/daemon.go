package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/engine"
	"github.com/feedsync/feedsync/internal/notify"
)

// SyncFunc runs one replication pass.
type SyncFunc func(ctx context.Context) (*engine.RunResult, error)

// Daemon triggers sync runs on a fixed interval. The clock is injectable
// so tests can drive the schedule.
type Daemon struct {
	clock        clockwork.Clock
	interval     time.Duration
	runOnStartup bool
	tracker      *RunTracker
	sync         SyncFunc
	notifier     notify.Notifier
	logger       *zap.Logger
}

func NewDaemon(cfg *DaemonConfig, tracker *RunTracker, sync SyncFunc, notifier notify.Notifier, clock clockwork.Clock, logger *zap.Logger) *Daemon {
	return &Daemon{
		clock:        clock,
		interval:     cfg.Interval,
		runOnStartup: cfg.RunOnStartup,
		tracker:      tracker,
		sync:         sync,
		notifier:     notifier,
		logger:       logger,
	}
}

// Run loops until the context is canceled. When the recorded last run is
// older than one interval, the first run fires on startup instead of
// waiting out a full interval.
func (d *Daemon) Run(ctx context.Context) error {
	if d.runOnStartup && d.tracker.Stale(d.clock.Now(), d.interval) {
		d.logger.Info("last run is stale, syncing on startup",
			zap.Time("last_run", d.tracker.LastRun()),
		)
		d.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon shutting down")
			return ctx.Err()
		case <-d.clock.After(d.interval):
			d.runOnce(ctx)
		}
	}
}

// runOnce executes one sync run, notifies, and records success in the
// tracker. Failed runs leave the tracker untouched so the next interval
// retries.
func (d *Daemon) runOnce(ctx context.Context) {
	start := d.clock.Now()
	result, err := d.sync(ctx)
	duration := d.clock.Since(start)

	if err == nil && result.Failed > 0 {
		err = fmt.Errorf("%d users failed", result.Failed)
	}

	if err != nil {
		d.logger.Error("sync run failed", zap.Error(err), zap.Duration("duration", duration))
		// Shutdown is not a failure worth notifying about
		if ctx.Err() == nil && result != nil {
			if nerr := d.notifier.SendFailure(ctx, result, duration, err); nerr != nil {
				d.logger.Warn("failed to send notification", zap.Error(nerr))
			}
		}
		return
	}

	d.logger.Info("sync run succeeded",
		zap.Int("tasks", result.Tasks),
		zap.Int("items_copied", result.ItemsCopied),
		zap.Int64("bytes_copied", result.BytesCopied),
		zap.Duration("duration", duration),
	)

	if nerr := d.notifier.SendSuccess(ctx, result, duration); nerr != nil {
		d.logger.Warn("failed to send notification", zap.Error(nerr))
	}

	if terr := d.tracker.SetLastRun(d.clock.Now()); terr != nil {
		d.logger.Error("failed to update tracker", zap.Error(terr))
	}
}
