package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

// WindowLister returns the top-level windows that currently exist.
type WindowLister func() ([]xproto.Window, error)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically checks for windows that disappeared without a
// DestroyNotify and reports them destroyed.
type Reconciler struct {
	interval    time.Duration
	sync        *StateSynchronizer
	listWindows WindowLister
	logger      *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, sync *StateSynchronizer, listWindows WindowLister) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval:    interval,
		sync:        sync,
		listWindows: listWindows,
		logger:      logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile performs a single reconciliation pass and returns the
// windows reported destroyed.
func (r *Reconciler) reconcile(ctx context.Context) []xproto.Window {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	// Snapshot first: a window created after the listing below is not in
	// this snapshot and so is never mistaken for a vanished one.
	expected, err := r.sync.Known(ctx)
	if err != nil {
		r.logger.Warn("reconciler: failed to read tracked windows", "error", err)
		return nil
	}
	if len(expected) == 0 {
		return nil
	}

	actual, err := r.listWindows()
	if err != nil {
		r.logger.Error("reconciler: failed to list windows", "error", err)
		return nil
	}

	alive := make(map[xproto.Window]bool, len(actual))
	for _, id := range actual {
		alive[id] = true
	}

	var orphaned []xproto.Window
	for _, id := range expected {
		if !alive[id] {
			orphaned = append(orphaned, id)
		}
	}
	if len(orphaned) == 0 {
		return nil
	}

	for _, id := range orphaned {
		r.logger.Info("reconciler: window vanished without destroy notify", "window", id)
	}
	if err := r.sync.HandleWindowsClosed(ctx, orphaned); err != nil {
		r.logger.Warn("reconciler: failed to report vanished windows", "error", err)
		return nil
	}
	return orphaned
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) []xproto.Window {
	return r.reconcile(ctx)
}
