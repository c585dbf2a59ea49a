package daemon

import (
	"context"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"
)

// Caller runs a function on the event loop and waits for it.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// Tracker is the set of windows under management. Its methods are only
// called on the event loop.
type Tracker interface {
	Known() []xproto.Window
	Vanished(id xproto.Window)
}

// StateSynchronizer reaches the tracker from outside the event loop.
type StateSynchronizer struct {
	loop    Caller
	tracker Tracker
	logger  *slog.Logger
}

// NewStateSynchronizer creates a new state synchronizer.
func NewStateSynchronizer(loop Caller, tracker Tracker, logger *slog.Logger) *StateSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateSynchronizer{
		loop:    loop,
		tracker: tracker,
		logger:  logger,
	}
}

// Known returns the tracked windows.
func (s *StateSynchronizer) Known(ctx context.Context) ([]xproto.Window, error) {
	// Buffered so a call that outlives ctx still completes.
	result := make(chan []xproto.Window, 1)
	if err := s.loop.Call(ctx, func() { result <- s.tracker.Known() }); err != nil {
		return nil, err
	}
	return <-result, nil
}

// HandleWindowsClosed reports every id as destroyed. Ids destroyed in the
// meantime are skipped by the tracker.
func (s *StateSynchronizer) HandleWindowsClosed(ctx context.Context, ids []xproto.Window) error {
	return s.loop.Call(ctx, func() {
		for _, id := range ids {
			s.logger.Debug("window closed, cleaning up", "window", id)
			s.tracker.Vanished(id)
		}
	})
}
