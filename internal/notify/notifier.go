// Package notify turns surface lifecycle facts into method calls for the
// UI engine.
package notify

import (
	"log/slog"

	"github.com/1broseidon/xwbridge/internal/surface"
)

// Channel is the asynchronous method-invocation transport to the UI engine.
// Calls are fire-and-forget; an error only means the call was not queued.
type Channel interface {
	InvokeMethod(method string, args any) error
}

// Notifier submits lifecycle notifications on a Channel.
type Notifier struct {
	ch     Channel
	logger *slog.Logger
}

// New creates a notifier writing to ch.
func New(ch Channel, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{ch: ch, logger: logger}
}

// NewSurface sends new_x11_surface.
func (n *Notifier) NewSurface(id surface.ID) {
	n.send(MethodNewX11Surface, NewSurface(id))
}

// MapSurface sends map_x11_surface for a mapped window snapshot.
func (n *Notifier) MapSurface(s surface.Surface, parent *surface.ID) {
	n.send(MethodMapX11Surface, MapSurface(s, parent))
}

// UnmapSurface sends unmap_x11_surface.
func (n *Notifier) UnmapSurface(id surface.ID) {
	n.send(MethodUnmapX11Surface, UnmapSurface(id))
}

// DestroySurface sends destroy_x11_surface.
func (n *Notifier) DestroySurface(id surface.ID) {
	n.send(MethodDestroyX11Surface, DestroySurface(id))
}

func (n *Notifier) send(method string, payload any) {
	if err := n.ch.InvokeMethod(method, payload); err != nil {
		n.logger.Warn("failed to submit notification", "method", method, "error", err)
		return
	}
	n.logger.Debug("notification submitted", "method", method)
}
