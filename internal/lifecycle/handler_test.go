package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/xwbridge/internal/focus"
	"github.com/1broseidon/xwbridge/internal/notify"
	"github.com/1broseidon/xwbridge/internal/notify/notifytest"
	"github.com/1broseidon/xwbridge/internal/surface"
)

type harness struct {
	reg     *surface.Registry
	rec     *notifytest.Recorder
	handler *Handler
	focused focus.Target
}

func newHarness() *harness {
	h := &harness{
		reg: surface.NewRegistry(surface.NewIDAllocator()),
		rec: &notifytest.Recorder{},
	}
	h.handler = NewHandler(h.reg, notify.New(h.rec, nil), func() focus.Target { return h.focused }, nil)
	return h
}

func (h *harness) mapCall(t *testing.T, i int) notify.MapX11Surface {
	t.Helper()
	calls := h.rec.Calls()
	require.Greater(t, len(calls), i)
	require.Equal(t, notify.MethodMapX11Surface, calls[i].Method)
	msg, ok := calls[i].Args.(notify.MapX11Surface)
	require.True(t, ok)
	return msg
}

func TestEndToEnd_RegularWindowWithoutParent(t *testing.T) {
	h := newHarness()
	w1 := &fakeWindow{id: 7, geo: surface.Rect{X: 50, Y: 60, Width: 800, Height: 600}, native: 100, hasNative: true}

	h.handler.NewWindow(w1)
	h.handler.MapWindowRequest(w1)
	h.handler.MapWindowNotify(w1)

	require.Equal(t, []string{notify.MethodNewX11Surface, notify.MethodMapX11Surface}, h.rec.Methods())
	assert.Equal(t, notify.NewX11Surface{X11SurfaceID: 1}, h.rec.Calls()[0].Args)

	msg := h.mapCall(t, 1)
	assert.Equal(t, surface.ID(1), msg.X11SurfaceID)
	assert.Equal(t, surface.NativeHandle(100), msg.SurfaceID)
	assert.Nil(t, msg.Parent)
	assert.False(t, msg.OverrideRedirect)
	assert.Equal(t, notify.Geometry{Width: 800, Height: 600}, msg.Geometry)

	assert.Equal(t, []surface.Rect{{Width: 800, Height: 600}}, w1.configured)
	assert.Equal(t, []bool{true}, w1.mapped)
	assert.Equal(t, []bool{true, true}, w1.activated)
}

func TestEndToEnd_OverrideRedirectTransientForKnownWindow(t *testing.T) {
	h := newHarness()
	w1 := &fakeWindow{id: 7, native: 100, hasNative: true}
	w2 := &fakeWindow{
		id:               8,
		overrideRedirect: true,
		geo:              surface.Rect{X: 300, Y: 200, Width: 120, Height: 80},
		native:           101,
		hasNative:        true,
		transientFor:     7,
		hasTransient:     true,
	}

	h.handler.NewWindow(w1)
	h.handler.MapWindowNotify(w1)
	h.handler.NewOverrideRedirectWindow(w2)
	h.handler.MappedOverrideRedirectWindow(w2)

	msg := h.mapCall(t, 3)
	assert.Equal(t, surface.ID(2), msg.X11SurfaceID)
	require.NotNil(t, msg.Parent)
	assert.Equal(t, surface.ID(1), *msg.Parent)
	assert.True(t, msg.OverrideRedirect)
	assert.Equal(t, notify.Geometry{Width: 120, Height: 80}, msg.Geometry, "origin is pinned even for override-redirect windows")
	assert.Empty(t, w2.configured, "override-redirect windows are never configured on creation")
	assert.Equal(t, []bool{true}, w2.activated)
}

func TestMap_OverrideRedirectFallsBackToFocus(t *testing.T) {
	tests := []struct {
		name       string
		focused    func(w1 *fakeWindow) focus.Target
		transient  bool
		wantParent *surface.ID
	}{
		{
			name:       "focused x11 window",
			focused:    func(w1 *fakeWindow) focus.Target { return focus.FromX11(focus.X11{Window: w1.id, Native: w1.native, HasNative: true}) },
			wantParent: ptr(1),
		},
		{
			name:       "focused native handle of x11 window",
			focused:    func(w1 *fakeWindow) focus.Target { return focus.Native(w1.native) },
			wantParent: ptr(1),
		},
		{
			name:    "focused unrelated native surface",
			focused: func(*fakeWindow) focus.Target { return focus.Native(555) },
		},
		{
			name:    "nothing focused",
			focused: func(*fakeWindow) focus.Target { return focus.None() },
		},
		{
			name:       "unknown transient-for falls back to focus",
			focused:    func(w1 *fakeWindow) focus.Target { return focus.Native(w1.native) },
			transient:  true,
			wantParent: ptr(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			w1 := &fakeWindow{id: 7, native: 100, hasNative: true}
			h.handler.NewWindow(w1)
			h.handler.MapWindowNotify(w1)

			h.focused = tt.focused(w1)
			popup := &fakeWindow{id: 8, overrideRedirect: true, native: 101, hasNative: true}
			if tt.transient {
				popup.transientFor = 99
				popup.hasTransient = true
			}
			h.handler.NewOverrideRedirectWindow(popup)
			h.handler.MappedOverrideRedirectWindow(popup)

			msg := h.mapCall(t, 3)
			assert.Equal(t, tt.wantParent, msg.Parent)
		})
	}
}

func TestMap_RegularWindowIgnoresFocus(t *testing.T) {
	h := newHarness()
	w1 := &fakeWindow{id: 7, native: 100, hasNative: true}
	h.handler.NewWindow(w1)
	h.handler.MapWindowNotify(w1)
	h.focused = focus.Native(100)

	dialog := &fakeWindow{id: 9, native: 102, hasNative: true}
	h.handler.NewWindow(dialog)
	h.handler.MapWindowNotify(dialog)
	assert.Nil(t, h.mapCall(t, 3).Parent)

	child := &fakeWindow{id: 10, native: 103, hasNative: true, transientFor: 7, hasTransient: true}
	h.handler.NewWindow(child)
	h.handler.MapWindowNotify(child)
	msg := h.mapCall(t, 5)
	require.NotNil(t, msg.Parent)
	assert.Equal(t, surface.ID(1), *msg.Parent)
}

func TestMap_PopupNeverParentsItself(t *testing.T) {
	h := newHarness()
	popup := &fakeWindow{id: 8, overrideRedirect: true, native: 101, hasNative: true}
	h.focused = focus.Native(101)

	h.handler.NewOverrideRedirectWindow(popup)
	h.handler.MappedOverrideRedirectWindow(popup)

	assert.Nil(t, h.mapCall(t, 1).Parent)
}

func TestMap_WithoutNativeSurfaceIsIgnored(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7}
	h.handler.NewWindow(w)
	h.handler.MapWindowNotify(w)

	assert.Equal(t, []string{notify.MethodNewX11Surface}, h.rec.Methods())
	s, ok := h.reg.LookupByLegacy(7)
	require.True(t, ok)
	assert.Equal(t, surface.StateCreated, s.State)
}

func TestMap_UnknownWindowIsIgnored(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7, native: 100, hasNative: true}

	h.handler.MapWindowNotify(w)
	h.handler.UnmappedWindow(w)
	h.handler.DestroyedWindow(w)

	assert.Empty(t, h.rec.Calls())
	_, ok := h.reg.LookupByNative(100)
	assert.False(t, ok)
}

func TestMap_RecordsAttributes(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{
		id:        7,
		native:    100,
		hasNative: true,
		attrs:     surface.Attributes{Title: "xterm", Class: "XTerm", Instance: "xterm", StartupID: "seat0_TIME42"},
	}
	h.handler.NewWindow(w)
	h.handler.MapWindowNotify(w)

	msg := h.mapCall(t, 1)
	require.NotNil(t, msg.Title)
	require.NotNil(t, msg.WindowClass)
	require.NotNil(t, msg.Instance)
	require.NotNil(t, msg.StartupID)
	assert.Equal(t, "xterm", *msg.Title)
	assert.Equal(t, "XTerm", *msg.WindowClass)
	assert.Equal(t, "xterm", *msg.Instance)
	assert.Equal(t, "seat0_TIME42", *msg.StartupID)
}

func TestUnmapThenDestroy_EmitsEachOnce(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7, native: 100, hasNative: true}
	h.handler.NewWindow(w)
	h.handler.MapWindowNotify(w)
	h.rec.Reset()

	h.handler.UnmappedWindow(w)
	h.handler.UnmappedWindow(w)
	h.handler.DestroyedWindow(w)
	h.handler.DestroyedWindow(w)

	assert.Equal(t, []string{notify.MethodUnmapX11Surface, notify.MethodDestroyX11Surface}, h.rec.Methods())
	assert.Equal(t, notify.UnmapX11Surface{X11SurfaceID: 1}, h.rec.Calls()[0].Args)
	assert.Equal(t, notify.DestroyX11Surface{X11SurfaceID: 1}, h.rec.Calls()[1].Args)
	assert.Equal(t, 0, h.reg.Len())
}

func TestUnmap_KeepsSurfaceForRemap(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7, native: 100, hasNative: true}
	h.handler.NewWindow(w)
	h.handler.MapWindowNotify(w)
	h.handler.UnmappedWindow(w)

	s, ok := h.reg.LookupByLegacy(7)
	require.True(t, ok)
	assert.Equal(t, surface.StateUnmapped, s.State)
	_, ok = h.reg.LookupByNative(100)
	assert.False(t, ok)
	assert.Equal(t, []bool{false}, w.mapped)

	w.native = 104
	h.handler.MapWindowNotify(w)
	msg := h.mapCall(t, 3)
	assert.Equal(t, surface.ID(1), msg.X11SurfaceID)
	assert.Equal(t, surface.NativeHandle(104), msg.SurfaceID)
}

func TestUnmap_OverrideRedirectNotForcedUnmapped(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 8, overrideRedirect: true, native: 101, hasNative: true}
	h.handler.NewOverrideRedirectWindow(w)
	h.handler.MappedOverrideRedirectWindow(w)
	h.handler.UnmappedWindow(w)

	assert.Empty(t, w.mapped)
	assert.Contains(t, h.rec.Methods(), notify.MethodUnmapX11Surface)
}

func TestDestroy_RecreatedWindowGetsFreshID(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7}
	h.handler.NewWindow(w)
	h.handler.DestroyedWindow(w)
	h.handler.NewWindow(w)

	calls := h.rec.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, notify.NewX11Surface{X11SurfaceID: 2}, calls[2].Args)
}

func TestConfigureRequest_PinsOriginHonoursSize(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7, geo: surface.Rect{Width: 100, Height: 100}}
	h.handler.NewWindow(w)

	x, y, width := 500, 400, 640
	h.handler.ConfigureRequest(w, ConfigureRequest{X: &x, Y: &y, Width: &width})

	want := surface.Rect{Width: 640, Height: 100}
	assert.Equal(t, want, w.geo)
	s, _ := h.reg.LookupByLegacy(7)
	assert.Equal(t, want, s.Geometry)
}

func TestConfigureRequest_RejectionIsNonFatal(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7, geo: surface.Rect{Width: 100, Height: 100}}
	h.handler.NewWindow(w)

	w.configureErr = errors.New("bad window")
	height := 300
	assert.NotPanics(t, func() {
		h.handler.ConfigureRequest(w, ConfigureRequest{Height: &height})
	})

	s, _ := h.reg.LookupByLegacy(7)
	assert.Equal(t, surface.Rect{Width: 100, Height: 100}, s.Geometry)
}

func TestNewWindow_ConfigureFailureStillRegisters(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7, configureErr: errors.New("bad window")}
	h.handler.NewWindow(w)

	assert.Equal(t, []string{notify.MethodNewX11Surface}, h.rec.Methods())
}

func TestIgnoredRequests(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 7, geo: surface.Rect{Width: 10, Height: 10}}
	h.handler.NewWindow(w)
	h.rec.Reset()

	h.handler.ConfigureNotify(w, surface.Rect{X: 5, Y: 5, Width: 20, Height: 20})
	h.handler.ResizeRequest(w, 1, ResizeEdgeBottomRight)
	h.handler.MoveRequest(w, 1)

	assert.Empty(t, h.rec.Calls())
	assert.Len(t, w.configured, 1)
}

func TestMapWindowRequest_SkipsOverrideRedirect(t *testing.T) {
	h := newHarness()
	w := &fakeWindow{id: 8, overrideRedirect: true}
	h.handler.MapWindowRequest(w)
	assert.Empty(t, w.mapped)
	assert.Empty(t, w.activated)
}

func ptr(id surface.ID) *surface.ID {
	return &id
}
