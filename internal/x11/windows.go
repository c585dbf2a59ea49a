package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/xwbridge/internal/lifecycle"
	"github.com/1broseidon/xwbridge/internal/surface"
)

const stateFocused = "_NET_WM_STATE_FOCUSED"

// Window is a top-level window of the compatibility server. Fields other
// than id and overrideRedirect are only touched from the event loop.
type Window struct {
	conn             *Connection
	id               xproto.Window
	overrideRedirect bool

	geometry  surface.Rect
	mapped    bool
	native    surface.NativeHandle
	hasNative bool
}

var _ lifecycle.Window = (*Window)(nil)

func newWindow(conn *Connection, id xproto.Window, overrideRedirect bool, geo surface.Rect) *Window {
	return &Window{
		conn:             conn,
		id:               id,
		overrideRedirect: overrideRedirect,
		geometry:         geo,
	}
}

func (w *Window) WindowID() xproto.Window { return w.id }

func (w *Window) OverrideRedirect() bool { return w.overrideRedirect }

func (w *Window) Geometry() surface.Rect { return w.geometry }

func (w *Window) NativeSurface() (surface.NativeHandle, bool) {
	return w.native, w.hasNative
}

func (w *Window) setNative(handle surface.NativeHandle) {
	w.native = handle
	w.hasNative = true
}

// Configure moves and resizes the window.
func (w *Window) Configure(geo surface.Rect) error {
	err := xproto.ConfigureWindowChecked(
		w.conn.XUtil.Conn(),
		w.id,
		xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(int32(geo.X)), uint32(int32(geo.Y)), uint32(geo.Width), uint32(geo.Height)},
	).Check()
	if err != nil {
		return fmt.Errorf("configure window %d: %w", w.id, err)
	}
	w.geometry = geo
	return nil
}

// SetMapped maps or withdraws the window and records its ICCCM state.
func (w *Window) SetMapped(mapped bool) error {
	c := w.conn.XUtil.Conn()
	state := &icccm.WmState{State: icccm.StateNormal}
	if mapped {
		if err := xproto.MapWindowChecked(c, w.id).Check(); err != nil {
			return fmt.Errorf("map window %d: %w", w.id, err)
		}
	} else {
		state.State = icccm.StateWithdrawn
		if err := xproto.UnmapWindowChecked(c, w.id).Check(); err != nil {
			return fmt.Errorf("unmap window %d: %w", w.id, err)
		}
	}
	if err := icccm.WmStateSet(w.conn.XUtil, w.id, state); err != nil {
		return fmt.Errorf("set WM_STATE on %d: %w", w.id, err)
	}
	return nil
}

// SetActivated gives the window input focus and flags it focused. The
// previously active window loses its focused flag.
func (w *Window) SetActivated(activated bool) error {
	xu := w.conn.XUtil
	if activated {
		err := xproto.SetInputFocusChecked(xu.Conn(), xproto.InputFocusPointerRoot, w.id, xproto.TimeCurrentTime).Check()
		if err != nil {
			return fmt.Errorf("focus window %d: %w", w.id, err)
		}
		if prev, err := ewmh.ActiveWindowGet(xu); err == nil && prev != 0 && prev != w.id {
			// The previous window may already be gone.
			setFocusedState(w.conn, prev, false)
		}
		if err := ewmh.ActiveWindowSet(xu, w.id); err != nil {
			return fmt.Errorf("set active window %d: %w", w.id, err)
		}
	}
	return setFocusedState(w.conn, w.id, activated)
}

func setFocusedState(conn *Connection, id xproto.Window, focused bool) error {
	states, _ := ewmh.WmStateGet(conn.XUtil, id)
	states, changed := withFocusedState(states, focused)
	if !changed {
		return nil
	}
	if err := ewmh.WmStateSet(conn.XUtil, id, states); err != nil {
		return fmt.Errorf("set _NET_WM_STATE on %d: %w", id, err)
	}
	return nil
}

// TransientFor reads WM_TRANSIENT_FOR.
func (w *Window) TransientFor() (xproto.Window, bool) {
	parent, err := icccm.WmTransientForGet(w.conn.XUtil, w.id)
	if err != nil || parent == 0 || parent == w.id {
		return 0, false
	}
	return parent, true
}

// Attributes reads the descriptive properties of the window.
func (w *Window) Attributes() surface.Attributes {
	xu := w.conn.XUtil
	var attrs surface.Attributes

	if name, err := ewmh.WmNameGet(xu, w.id); err == nil && name != "" {
		attrs.Title = name
	} else if name, err := icccm.WmNameGet(xu, w.id); err == nil {
		attrs.Title = name
	}
	if class, err := icccm.WmClassGet(xu, w.id); err == nil {
		attrs.Class = class.Class
		attrs.Instance = class.Instance
	}
	if id, err := xprop.PropValStr(xprop.GetProperty(xu, w.id, "_NET_STARTUP_ID")); err == nil {
		attrs.StartupID = id
	}
	return attrs
}
