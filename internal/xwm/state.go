// Package xwm is the callback surface the X11 compatibility layer drives.
// It owns the surface registry and routes every callback to the lifecycle
// handler or the selection bridge.
package xwm

import (
	"log/slog"
	"os"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xwbridge/internal/focus"
	"github.com/1broseidon/xwbridge/internal/lifecycle"
	"github.com/1broseidon/xwbridge/internal/notify"
	"github.com/1broseidon/xwbridge/internal/selection"
	"github.com/1broseidon/xwbridge/internal/surface"
)

// Handler lists every callback raised by the compatibility layer.
type Handler interface {
	NewWindow(w lifecycle.Window)
	NewOverrideRedirectWindow(w lifecycle.Window)
	MapWindowRequest(w lifecycle.Window)
	MapWindowNotify(w lifecycle.Window)
	MappedOverrideRedirectWindow(w lifecycle.Window)
	UnmappedWindow(w lifecycle.Window)
	DestroyedWindow(w lifecycle.Window)
	ConfigureRequest(w lifecycle.Window, req lifecycle.ConfigureRequest)
	ConfigureNotify(w lifecycle.Window, geo surface.Rect)
	ResizeRequest(w lifecycle.Window, button uint32, edge lifecycle.ResizeEdge)
	MoveRequest(w lifecycle.Window, button uint32)

	AllowSelectionAccess(target selection.Target) bool
	SendSelection(target selection.Target, mimeType string, fd *os.File)
	NewSelection(target selection.Target, mimeTypes []string)
	ClearedSelection(target selection.Target)
}

// Options configures a State.
type Options struct {
	ID       surface.XwmID
	Registry *surface.Registry
	Channel  notify.Channel
	Seat     *selection.Seat
	// LegacySource serves native requests for X11-owned selections.
	LegacySource selection.Source
	Logger       *slog.Logger
}

// State is the per-session bridge state. It must only be used from the
// event loop goroutine.
type State struct {
	id        surface.XwmID
	registry  *surface.Registry
	lifecycle *lifecycle.Handler
	selection *selection.Bridge
	focused   focused
	logger    *slog.Logger
}

var _ Handler = (*State)(nil)

type focused struct {
	kind   focus.Kind
	window xproto.Window
	native surface.NativeHandle
}

// New creates the session state.
func New(opts Options) *State {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = surface.NewRegistry(nil)
	}
	seat := opts.Seat
	if seat == nil {
		seat = selection.NewSeat()
	}

	s := &State{
		id:       opts.ID,
		registry: reg,
		logger:   logger.With("xwm", opts.ID),
	}
	n := notify.New(opts.Channel, s.logger)
	s.lifecycle = lifecycle.NewHandler(reg, n, s.Focus, s.logger)
	s.selection = selection.NewBridge(seat, opts.LegacySource, s.Focus, s.logger)
	return s
}

// ID returns the session id.
func (s *State) ID() surface.XwmID { return s.id }

// Registry returns the surface registry.
func (s *State) Registry() *surface.Registry { return s.registry }

// Selection returns the selection bridge.
func (s *State) Selection() *selection.Bridge { return s.selection }

// Focus returns the current keyboard focus. The native surface of a
// focused legacy window is read from the registry, so it follows
// map/unmap.
func (s *State) Focus() focus.Target {
	switch s.focused.kind {
	case focus.KindNative:
		return focus.Native(s.focused.native)
	case focus.KindX11:
		x := focus.X11{Window: s.focused.window, Xwm: s.id}
		if sf, ok := s.registry.LookupByLegacy(s.focused.window); ok && sf.HasNative {
			x.Native = sf.Native
			x.HasNative = true
		}
		return focus.FromX11(x)
	default:
		return focus.None()
	}
}

// FocusWindow gives keyboard focus to a legacy window of this session.
func (s *State) FocusWindow(w xproto.Window) {
	s.focused = focused{kind: focus.KindX11, window: w}
}

// FocusNative gives keyboard focus to a native surface. A handle bound to
// one of this session's windows focuses that window instead.
func (s *State) FocusNative(handle surface.NativeHandle) {
	if sf, ok := s.registry.LookupByNative(handle); ok {
		s.FocusWindow(sf.Legacy)
		return
	}
	s.focused = focused{kind: focus.KindNative, native: handle}
}

// ClearFocus drops keyboard focus.
func (s *State) ClearFocus() {
	s.focused = focused{}
}

// BlurWindow drops keyboard focus if w holds it. Focus held by another
// window or a native surface is left alone.
func (s *State) BlurWindow(w xproto.Window) {
	if s.holdsFocus(w) {
		s.ClearFocus()
	}
}

func (s *State) holdsFocus(w xproto.Window) bool {
	return s.focused.kind == focus.KindX11 && s.focused.window == w
}

func (s *State) NewWindow(w lifecycle.Window) { s.lifecycle.NewWindow(w) }

func (s *State) NewOverrideRedirectWindow(w lifecycle.Window) {
	s.lifecycle.NewOverrideRedirectWindow(w)
}

func (s *State) MapWindowRequest(w lifecycle.Window) { s.lifecycle.MapWindowRequest(w) }

func (s *State) MapWindowNotify(w lifecycle.Window) { s.lifecycle.MapWindowNotify(w) }

func (s *State) MappedOverrideRedirectWindow(w lifecycle.Window) {
	s.lifecycle.MappedOverrideRedirectWindow(w)
}

// UnmappedWindow hides w and releases keyboard focus held by it.
func (s *State) UnmappedWindow(w lifecycle.Window) {
	s.lifecycle.UnmappedWindow(w)
	s.BlurWindow(w.WindowID())
}

func (s *State) DestroyedWindow(w lifecycle.Window) {
	s.lifecycle.DestroyedWindow(w)
	s.BlurWindow(w.WindowID())
}

func (s *State) ConfigureRequest(w lifecycle.Window, req lifecycle.ConfigureRequest) {
	s.lifecycle.ConfigureRequest(w, req)
}

func (s *State) ConfigureNotify(w lifecycle.Window, geo surface.Rect) {
	s.lifecycle.ConfigureNotify(w, geo)
}

func (s *State) ResizeRequest(w lifecycle.Window, button uint32, edge lifecycle.ResizeEdge) {
	s.lifecycle.ResizeRequest(w, button, edge)
}

func (s *State) MoveRequest(w lifecycle.Window, button uint32) {
	s.lifecycle.MoveRequest(w, button)
}

func (s *State) AllowSelectionAccess(target selection.Target) bool {
	return s.selection.AllowSelectionAccess(s.id, target)
}

func (s *State) SendSelection(target selection.Target, mimeType string, fd *os.File) {
	s.selection.SendSelection(s.id, target, mimeType, fd)
}

func (s *State) NewSelection(target selection.Target, mimeTypes []string) {
	s.selection.NewSelection(s.id, target, mimeTypes)
}

func (s *State) ClearedSelection(target selection.Target) {
	s.selection.ClearedSelection(s.id, target)
}
