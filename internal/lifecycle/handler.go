package lifecycle

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/xwbridge/internal/focus"
	"github.com/1broseidon/xwbridge/internal/notify"
	"github.com/1broseidon/xwbridge/internal/surface"
)

// FocusFunc reports the current keyboard focus.
type FocusFunc func() focus.Target

// Handler drives the per-window state machine
// Created -> Mapped <-> Unmapped -> Destroyed.
// All methods must be called from the event loop goroutine.
type Handler struct {
	registry *surface.Registry
	notifier *notify.Notifier
	focus    FocusFunc
	logger   *slog.Logger
}

// NewHandler creates a lifecycle handler.
func NewHandler(reg *surface.Registry, n *notify.Notifier, current FocusFunc, logger *slog.Logger) *Handler {
	if current == nil {
		current = focus.None
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: reg,
		notifier: n,
		focus:    current,
		logger:   logger,
	}
}

// NewWindow handles a managed window being created. Windows may not place
// themselves, so the origin is reset before registration.
func (h *Handler) NewWindow(w Window) {
	geo := w.Geometry().AtOrigin()
	if err := w.Configure(geo); err != nil {
		h.logger.Warn("initial configure failed",
			"window", w.WindowID(),
			"error", fmt.Errorf("%w: %v", ErrConfigurationRejected, err))
		geo = w.Geometry()
	}
	h.register(w, false, geo)
}

// NewOverrideRedirectWindow handles an override-redirect window being
// created. Its placement is left alone.
func (h *Handler) NewOverrideRedirectWindow(w Window) {
	h.register(w, true, w.Geometry())
}

func (h *Handler) register(w Window, overrideRedirect bool, geo surface.Rect) {
	id := h.registry.Register(w.WindowID(), overrideRedirect)
	_ = h.registry.SetGeometry(w.WindowID(), geo)

	h.logger.Debug("x11 surface created",
		"window", w.WindowID(),
		"x11_surface_id", id,
		"override_redirect", overrideRedirect)

	h.notifier.NewSurface(id)
}

// MapWindowRequest marks a managed window mapped and activated before the
// map actually completes.
func (h *Handler) MapWindowRequest(w Window) {
	if w.OverrideRedirect() {
		return
	}
	if err := w.SetMapped(true); err != nil {
		h.logger.Warn("failed to map window", "window", w.WindowID(), "error", err)
	}
	if err := w.SetActivated(true); err != nil {
		h.logger.Warn("failed to activate window", "window", w.WindowID(), "error", err)
	}
}

// MapWindowNotify handles a managed window finishing its map.
func (h *Handler) MapWindowNotify(w Window) {
	if h.mapSurface(w) {
		h.activate(w)
	}
}

// MappedOverrideRedirectWindow handles an override-redirect window being
// mapped by its client.
func (h *Handler) MappedOverrideRedirectWindow(w Window) {
	if h.mapSurface(w) {
		h.activate(w)
	}
}

func (h *Handler) activate(w Window) {
	if err := w.SetActivated(true); err != nil {
		h.logger.Warn("failed to activate window", "window", w.WindowID(), "error", err)
	}
}

// mapSurface reports whether map_x11_surface was sent.
func (h *Handler) mapSurface(w Window) bool {
	legacy := w.WindowID()

	handle, ok := w.NativeSurface()
	if !ok {
		h.logger.Debug("map without native surface", "window", legacy)
		return false
	}
	if _, ok := h.registry.LookupByLegacy(legacy); !ok {
		return false
	}

	if err := h.registry.BindNative(legacy, handle); err != nil {
		return false
	}
	_ = h.registry.Describe(legacy, w.Attributes())
	_ = h.registry.SetGeometry(legacy, w.Geometry())
	_ = h.registry.SetState(legacy, surface.StateMapped)

	var parent *surface.ID
	if id, ok := ResolveParent(h.registry, w, h.focus()); ok {
		parent = &id
	}

	s, _ := h.registry.LookupByLegacy(legacy)
	h.logger.Debug("x11 surface mapped",
		"window", legacy,
		"x11_surface_id", s.ID,
		"surface_id", s.Native,
		"has_parent", parent != nil)

	h.notifier.MapSurface(s, parent)
	return true
}

// UnmappedWindow handles a window being unmapped. The surface stays
// registered so it can be mapped again.
func (h *Handler) UnmappedWindow(w Window) {
	legacy := w.WindowID()
	s, ok := h.registry.LookupByLegacy(legacy)
	if !ok {
		return
	}

	if s.State == surface.StateMapped {
		h.registry.UnbindNative(legacy)
		_ = h.registry.SetState(legacy, surface.StateUnmapped)
		h.notifier.UnmapSurface(s.ID)
	}

	// Override-redirect clients own their mapped state.
	if !s.OverrideRedirect {
		if err := w.SetMapped(false); err != nil {
			h.logger.Warn("failed to unmap window", "window", legacy, "error", err)
		}
	}
}

// DestroyedWindow handles a window being destroyed and evicts it.
func (h *Handler) DestroyedWindow(w Window) {
	legacy := w.WindowID()
	s, ok := h.registry.LookupByLegacy(legacy)
	if !ok {
		return
	}

	h.notifier.DestroySurface(s.ID)
	h.registry.Evict(legacy)

	h.logger.Debug("x11 surface destroyed", "window", legacy, "x11_surface_id", s.ID)
}

// ConfigureRequest applies a client's size request. The origin is always
// forced to (0,0).
func (h *Handler) ConfigureRequest(w Window, req ConfigureRequest) {
	geo := w.Geometry().AtOrigin()
	if req.Width != nil {
		geo.Width = *req.Width
	}
	if req.Height != nil {
		geo.Height = *req.Height
	}

	if err := w.Configure(geo); err != nil {
		h.logger.Warn("configure request not applied",
			"window", w.WindowID(),
			"error", fmt.Errorf("%w: %v", ErrConfigurationRejected, err))
		return
	}
	_ = h.registry.SetGeometry(w.WindowID(), geo)
}

// ConfigureNotify is ignored; geometry only changes through
// ConfigureRequest.
func (h *Handler) ConfigureNotify(w Window, geo surface.Rect) {}

// ResizeRequest is ignored: client-initiated interactive resize is not
// supported.
func (h *Handler) ResizeRequest(w Window, button uint32, edge ResizeEdge) {}

// MoveRequest is ignored: client-initiated interactive move is not
// supported.
func (h *Handler) MoveRequest(w Window, button uint32) {}
