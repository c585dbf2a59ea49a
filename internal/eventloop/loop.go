// Package eventloop runs callbacks one at a time on a single goroutine.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Post once the loop has stopped.
var ErrStopped = errors.New("event loop stopped")

// Loop is a FIFO dispatcher. Every posted callback runs to completion
// before the next one starts, so state touched only from callbacks needs
// no locking.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	logger  *slog.Logger
}

// New creates an idle loop.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post queues fn. It never blocks.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call posts fn and waits for it to run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches callbacks until ctx is cancelled. Callbacks still queued
// at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.dispatch(fn)
			if ctx.Err() != nil {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) dispatch(fn func()) {
	// One failing callback must not take the compositor down with it.
	defer func() {
		if err := recover(); err != nil {
			l.logger.Error("event loop callback panic recovered", "error", err)
		}
	}()
	fn()
}
