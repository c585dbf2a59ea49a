package x11

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/xwbridge/internal/lifecycle"
	"github.com/1broseidon/xwbridge/internal/surface"
	"github.com/1broseidon/xwbridge/internal/xwm"
)

const (
	atomSurfaceID  = "WL_SURFACE_ID"
	atomMoveResize = "_NET_WM_MOVERESIZE"

	moveResizeMove = 8
)

// Poster hands work to the event loop.
type Poster interface {
	Post(fn func()) error
}

// Sink receives the translated X events. It is only called from the
// event loop.
type Sink interface {
	xwm.Handler
	FocusWindow(w xproto.Window)
	BlurWindow(w xproto.Window)
	ClearFocus()
}

// WM watches the top-level windows of the compatibility server and turns
// their X events into lifecycle callbacks.
type WM struct {
	conn   *Connection
	loop   Poster
	sink   Sink
	logger *slog.Logger

	surfaceIDAtom  xproto.Atom
	moveResizeAtom xproto.Atom

	ignoreMu sync.Mutex
	ignore   map[xproto.Window]struct{}

	// Event loop only.
	windows map[xproto.Window]*Window
}

// NewWM creates a window manager on conn.
func NewWM(conn *Connection, loop Poster, sink Sink, logger *slog.Logger) *WM {
	if logger == nil {
		logger = slog.Default()
	}
	return &WM{
		conn:    conn,
		loop:    loop,
		sink:    sink,
		logger:  logger,
		ignore:  make(map[xproto.Window]struct{}),
		windows: make(map[xproto.Window]*Window),
	}
}

// Ignore excludes one of the bridge's own windows from management.
func (m *WM) Ignore(w xproto.Window) {
	m.ignoreMu.Lock()
	m.ignore[w] = struct{}{}
	m.ignoreMu.Unlock()
}

func (m *WM) ignored(w xproto.Window) bool {
	m.ignoreMu.Lock()
	defer m.ignoreMu.Unlock()
	_, ok := m.ignore[w]
	return ok
}

// Start takes over window management on the root window and adopts the
// windows that already exist.
func (m *WM) Start() error {
	var err error
	if m.surfaceIDAtom, err = m.conn.Atom(atomSurfaceID); err != nil {
		return err
	}
	if m.moveResizeAtom, err = m.conn.Atom(atomMoveResize); err != nil {
		return err
	}
	if err := m.conn.becomeWM(); err != nil {
		return err
	}

	xu := m.conn.XUtil
	root := m.conn.Root

	xevent.CreateNotifyFun(func(xu *xgbutil.XUtil, ev xevent.CreateNotifyEvent) {
		if ev.Parent != root || m.ignored(ev.Window) {
			return
		}
		geo := surface.Rect{X: int(ev.X), Y: int(ev.Y), Width: int(ev.Width), Height: int(ev.Height)}
		m.track(newWindow(m.conn, ev.Window, ev.OverrideRedirect, geo), false)
	}).Connect(xu, root)

	xevent.MapRequestFun(func(xu *xgbutil.XUtil, ev xevent.MapRequestEvent) {
		id := ev.Window
		m.post(func() {
			w, ok := m.windows[id]
			if !ok {
				xproto.MapWindow(xu.Conn(), id)
				return
			}
			m.sink.MapWindowRequest(w)
		})
	}).Connect(xu, root)

	xevent.MapNotifyFun(func(xu *xgbutil.XUtil, ev xevent.MapNotifyEvent) {
		id := ev.Window
		m.post(func() {
			if w, ok := m.windows[id]; ok {
				w.mapped = true
				m.raiseMapped(w)
			}
		})
	}).Connect(xu, root)

	xevent.UnmapNotifyFun(func(xu *xgbutil.XUtil, ev xevent.UnmapNotifyEvent) {
		if ev.FromConfigure {
			return
		}
		id := ev.Window
		m.post(func() {
			if w, ok := m.windows[id]; ok {
				w.mapped = false
				m.sink.UnmappedWindow(w)
			}
		})
	}).Connect(xu, root)

	xevent.DestroyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
		id := ev.Window
		xevent.Detach(xu, id)
		m.post(func() { m.Vanished(id) })
	}).Connect(xu, root)

	xevent.ConfigureRequestFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureRequestEvent) {
		id := ev.Window
		req, mask, values := configureRequest(ev.ConfigureRequestEvent)
		m.post(func() {
			w, ok := m.windows[id]
			if !ok {
				xproto.ConfigureWindow(xu.Conn(), id, mask, values)
				return
			}
			m.sink.ConfigureRequest(w, req)
		})
	}).Connect(xu, root)

	xevent.FocusInFun(func(xu *xgbutil.XUtil, ev xevent.FocusInEvent) {
		if !focusReleased(ev.Mode, ev.Detail) {
			return
		}
		m.post(func() { m.sink.ClearFocus() })
	}).Connect(xu, root)

	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		id := ev.Window
		geo := surface.Rect{X: int(ev.X), Y: int(ev.Y), Width: int(ev.Width), Height: int(ev.Height)}
		m.post(func() {
			if w, ok := m.windows[id]; ok {
				w.geometry = geo
				m.sink.ConfigureNotify(w, geo)
			}
		})
	}).Connect(xu, root)

	return m.adoptExisting()
}

// adoptExisting tracks windows created before the bridge started.
func (m *WM) adoptExisting() error {
	children, err := m.conn.TopLevelWindows()
	if err != nil {
		return err
	}
	c := m.conn.XUtil.Conn()
	for _, id := range children {
		if m.ignored(id) {
			continue
		}
		attrs, err := xproto.GetWindowAttributes(c, id).Reply()
		if err != nil {
			continue
		}
		geom, err := xproto.GetGeometry(c, xproto.Drawable(id)).Reply()
		if err != nil {
			continue
		}
		geo := surface.Rect{X: int(geom.X), Y: int(geom.Y), Width: int(geom.Width), Height: int(geom.Height)}
		m.track(newWindow(m.conn, id, attrs.OverrideRedirect, geo), attrs.MapState == xproto.MapStateViewable)
	}
	m.logger.Debug("adopted existing windows", "count", len(children))
	return nil
}

// track connects the per-window callbacks and registers w on the loop.
// It runs on the X event goroutine so no event for w is missed.
func (m *WM) track(w *Window, mapped bool) {
	xu := m.conn.XUtil
	id := w.id

	xproto.ChangeWindowAttributes(xu.Conn(), id, xproto.CwEventMask,
		[]uint32{xproto.EventMaskFocusChange | xproto.EventMaskPropertyChange})

	xevent.ClientMessageFun(func(xu *xgbutil.XUtil, ev xevent.ClientMessageEvent) {
		m.handleClientMessage(ev.ClientMessageEvent)
	}).Connect(xu, id)

	xevent.FocusInFun(func(xu *xgbutil.XUtil, ev xevent.FocusInEvent) {
		if grabTransition(ev.Mode) {
			return
		}
		m.post(func() {
			if _, ok := m.windows[id]; ok {
				m.sink.FocusWindow(id)
			}
		})
	}).Connect(xu, id)

	xevent.FocusOutFun(func(xu *xgbutil.XUtil, ev xevent.FocusOutEvent) {
		if !focusLeft(ev.Mode, ev.Detail) {
			return
		}
		m.post(func() { m.sink.BlurWindow(id) })
	}).Connect(xu, id)

	m.post(func() {
		m.windows[id] = w
		if w.overrideRedirect {
			m.sink.NewOverrideRedirectWindow(w)
		} else {
			m.sink.NewWindow(w)
		}
		if mapped {
			w.mapped = true
			m.raiseMapped(w)
		}
	})
}

func (m *WM) handleClientMessage(ev *xproto.ClientMessageEvent) {
	if ev.Format != 32 {
		return
	}
	id := ev.Window
	data := ev.Data.Data32
	switch ev.Type {
	case m.surfaceIDAtom:
		handle := surface.NativeHandle(data[0])
		m.post(func() {
			w, ok := m.windows[id]
			if !ok {
				return
			}
			_, had := w.NativeSurface()
			w.setNative(handle)
			m.logger.Debug("native surface associated", "window", id, "surface", handle)
			// A window mapped before its surface arrived is reported now.
			if w.mapped && !had {
				m.raiseMapped(w)
			}
		})
	case m.moveResizeAtom:
		direction, button := data[2], data[3]
		m.post(func() {
			w, ok := m.windows[id]
			if !ok {
				return
			}
			if direction == moveResizeMove {
				m.sink.MoveRequest(w, button)
			} else if direction <= uint32(lifecycle.ResizeEdgeLeft) {
				m.sink.ResizeRequest(w, button, lifecycle.ResizeEdge(direction))
			}
		})
	}
}

func (m *WM) raiseMapped(w *Window) {
	if w.overrideRedirect {
		m.sink.MappedOverrideRedirectWindow(w)
	} else {
		m.sink.MapWindowNotify(w)
	}
}

// Known lists the tracked windows. Event loop only.
func (m *WM) Known() []xproto.Window {
	ids := make([]xproto.Window, 0, len(m.windows))
	for id := range m.windows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Vanished reports a window as destroyed and stops tracking it. Unknown
// windows are ignored. Event loop only.
func (m *WM) Vanished(id xproto.Window) {
	w, ok := m.windows[id]
	if !ok {
		return
	}
	delete(m.windows, id)
	m.sink.DestroyedWindow(w)
}

func (m *WM) post(fn func()) {
	if err := m.loop.Post(fn); err != nil {
		m.logger.Debug("dropping X event", "error", err)
	}
}

// configureRequest splits a ConfigureRequest into the requested geometry
// and the raw mask/values needed to forward it unchanged.
func configureRequest(ev *xproto.ConfigureRequestEvent) (lifecycle.ConfigureRequest, uint16, []uint32) {
	var req lifecycle.ConfigureRequest
	var values []uint32
	mask := ev.ValueMask

	set := func(bit uint16, v int, field **int) {
		if mask&bit == 0 {
			return
		}
		val := v
		*field = &val
	}
	set(xproto.ConfigWindowX, int(ev.X), &req.X)
	set(xproto.ConfigWindowY, int(ev.Y), &req.Y)
	set(xproto.ConfigWindowWidth, int(ev.Width), &req.Width)
	set(xproto.ConfigWindowHeight, int(ev.Height), &req.Height)

	// Values follow the bit order of the mask.
	if mask&xproto.ConfigWindowX != 0 {
		values = append(values, uint32(int32(ev.X)))
	}
	if mask&xproto.ConfigWindowY != 0 {
		values = append(values, uint32(int32(ev.Y)))
	}
	if mask&xproto.ConfigWindowWidth != 0 {
		values = append(values, uint32(ev.Width))
	}
	if mask&xproto.ConfigWindowHeight != 0 {
		values = append(values, uint32(ev.Height))
	}
	if mask&xproto.ConfigWindowBorderWidth != 0 {
		values = append(values, uint32(ev.BorderWidth))
	}
	if mask&xproto.ConfigWindowSibling != 0 {
		values = append(values, uint32(ev.Sibling))
	}
	if mask&xproto.ConfigWindowStackMode != 0 {
		values = append(values, uint32(ev.StackMode))
	}
	return req, mask, values
}
