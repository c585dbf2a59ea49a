package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/1broseidon/xwbridge/internal/focus"
	"github.com/1broseidon/xwbridge/internal/ipc"
	"github.com/1broseidon/xwbridge/internal/selection"
	"github.com/1broseidon/xwbridge/internal/surface"
)

// DefaultMimeTypes are offered for native content set without a type.
var DefaultMimeTypes = []string{"text/plain;charset=utf-8", "text/plain"}

// Session is the loop-confined bridge state the controller drives.
type Session interface {
	Focus() focus.Target
	FocusNative(handle surface.NativeHandle)
	ClearFocus()
	Registry() *surface.Registry
	Selection() *selection.Bridge
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Session Session
	Seat    *selection.Seat
	// Subscribers reports connected UI engines. Optional.
	Subscribers func() int
	Logger      *slog.Logger
}

// Controller serves control requests by running them on the event loop.
// Native clients reach the seat through it.
type Controller struct {
	loop        Caller
	session     Session
	seat        *selection.Seat
	subscribers func() int
	started     time.Time
	logger      *slog.Logger
}

var _ ipc.Controller = (*Controller)(nil)

// NewController creates a controller over loop.
func NewController(loop Caller, cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	subscribers := cfg.Subscribers
	if subscribers == nil {
		subscribers = func() int { return 0 }
	}
	return &Controller{
		loop:        loop,
		session:     cfg.Session,
		seat:        cfg.Seat,
		subscribers: subscribers,
		started:     time.Now(),
		logger:      logger,
	}
}

func (c *Controller) Status(ctx context.Context) (*ipc.StatusData, error) {
	result := make(chan ipc.StatusData, 1)
	err := c.loop.Call(ctx, func() {
		status := ipc.StatusData{
			Surfaces: c.session.Registry().Len(),
			Focus:    c.session.Focus().String(),
		}
		for _, target := range selection.Targets {
			st := c.seat.State(target)
			status.Selections = append(status.Selections, ipc.SelectionStatus{
				Target:    target.String(),
				Owner:     st.Owner.Kind.String(),
				MimeTypes: st.Offers,
				Enabled:   c.session.Selection().Enabled(target),
			})
		}
		result <- status
	})
	if err != nil {
		return nil, err
	}
	status := <-result
	status.Subscribers = c.subscribers()
	status.UptimeSeconds = int64(time.Since(c.started).Seconds())
	return &status, nil
}

// SetSelection installs native content. X clients can paste it once the
// seat has claimed the selection on the X side.
func (c *Controller) SetSelection(ctx context.Context, p ipc.SetSelectionPayload) error {
	target, err := selection.ParseTarget(p.Target)
	if err != nil {
		return err
	}
	mimeTypes := p.MimeTypes
	if len(mimeTypes) == 0 {
		mimeTypes = DefaultMimeTypes
	}
	data := slices.Clone(p.Data)
	return c.loop.Call(ctx, func() {
		c.logger.Debug("selection from native client", "target", target, "mime_types", mimeTypes, "size", len(data))
		c.seat.SetSelection(target, mimeTypes, selection.Owner{Kind: selection.OwnerNative}, selection.Bytes(data))
	})
}

type requestResult struct {
	mimeType string
	err      error
}

type readResult struct {
	data []byte
	err  error
}

// GetSelection reads the current selection the way a native client does,
// whichever side owns it.
func (c *Controller) GetSelection(ctx context.Context, p ipc.GetSelectionPayload) (*ipc.SelectionData, error) {
	target, err := selection.ParseTarget(p.Target)
	if err != nil {
		return nil, err
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create selection pipe: %w", err)
	}

	// The reader runs before the owner writes.
	read := make(chan readResult, 1)
	go func() {
		defer r.Close()
		data, err := io.ReadAll(io.LimitReader(r, ipc.MaxSelectionData+1))
		read <- readResult{data: data, err: err}
	}()

	// Whoever takes w first owns it: the loop callback, or this function
	// if the callback never got to run.
	var taken atomic.Bool
	requested := make(chan requestResult, 1)
	err = c.loop.Call(ctx, func() {
		if !taken.CompareAndSwap(false, true) {
			return
		}
		mimeType := p.MimeType
		if mimeType == "" {
			if offers := c.seat.State(target).Offers; len(offers) > 0 {
				mimeType = offers[0]
			}
		}
		requested <- requestResult{mimeType: mimeType, err: c.seat.Request(target, mimeType, w)}
	})
	if err != nil {
		if taken.CompareAndSwap(false, true) {
			w.Close()
		}
		return nil, err
	}

	req := <-requested
	if req.err != nil {
		return nil, req.err
	}

	select {
	case res := <-read:
		if res.err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", target, res.err)
		}
		if len(res.data) > ipc.MaxSelectionData {
			return nil, fmt.Errorf("%s content exceeds %d bytes", target, ipc.MaxSelectionData)
		}
		return &ipc.SelectionData{MimeType: req.mimeType, Data: res.data}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ClearSelection drops the selection of target, whichever side owns it.
func (c *Controller) ClearSelection(ctx context.Context, p ipc.ClearSelectionPayload) error {
	target, err := selection.ParseTarget(p.Target)
	if err != nil {
		return err
	}
	return c.loop.Call(ctx, func() { c.seat.Clear(target) })
}

// SetFocus follows the compositor's keyboard focus.
func (c *Controller) SetFocus(ctx context.Context, p ipc.SetFocusPayload) error {
	return c.loop.Call(ctx, func() {
		if p.Native == nil {
			c.session.ClearFocus()
			return
		}
		c.session.FocusNative(surface.NativeHandle(*p.Native))
		c.logger.Debug("native focus", "focus", c.session.Focus())
	})
}
