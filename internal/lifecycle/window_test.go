package lifecycle

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xwbridge/internal/surface"
)

// fakeWindow is an in-memory Window that records protocol requests.
type fakeWindow struct {
	id               xproto.Window
	overrideRedirect bool
	geo              surface.Rect
	native           surface.NativeHandle
	hasNative        bool
	transientFor     xproto.Window
	hasTransient     bool
	attrs            surface.Attributes

	configureErr error
	configured   []surface.Rect
	mapped       []bool
	activated    []bool
}

func (w *fakeWindow) WindowID() xproto.Window { return w.id }
func (w *fakeWindow) OverrideRedirect() bool { return w.overrideRedirect }
func (w *fakeWindow) Geometry() surface.Rect { return w.geo }
func (w *fakeWindow) Attributes() surface.Attributes { return w.attrs }

func (w *fakeWindow) Configure(geo surface.Rect) error {
	if w.configureErr != nil {
		return w.configureErr
	}
	w.configured = append(w.configured, geo)
	w.geo = geo
	return nil
}

func (w *fakeWindow) SetMapped(mapped bool) error {
	w.mapped = append(w.mapped, mapped)
	return nil
}

func (w *fakeWindow) SetActivated(activated bool) error {
	w.activated = append(w.activated, activated)
	return nil
}

func (w *fakeWindow) NativeSurface() (surface.NativeHandle, bool) {
	return w.native, w.hasNative
}

func (w *fakeWindow) TransientFor() (xproto.Window, bool) {
	return w.transientFor, w.hasTransient
}
