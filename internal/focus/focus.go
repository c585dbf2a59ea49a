// Package focus describes what currently holds keyboard focus.
package focus

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xwbridge/internal/surface"
)

// Kind tags the variant held by a Target.
type Kind uint8

const (
	KindNone Kind = iota
	KindNative
	KindX11
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNative:
		return "native"
	case KindX11:
		return "x11"
	default:
		return "unknown"
	}
}

// X11 is the payload of an X11 focus target.
type X11 struct {
	Window    xproto.Window
	Xwm       surface.XwmID
	Native    surface.NativeHandle
	HasNative bool
}

// Target is the current keyboard focus. The zero value means nothing is
// focused.
type Target struct {
	kind   Kind
	native surface.NativeHandle
	x11    X11
}

// None returns an empty focus target.
func None() Target {
	return Target{}
}

// Native returns a focus target for a native surface.
func Native(handle surface.NativeHandle) Target {
	return Target{kind: KindNative, native: handle}
}

// FromX11 returns a focus target for a legacy window.
func FromX11(x X11) Target {
	return Target{kind: KindX11, x11: x}
}

// Kind reports which variant t holds.
func (t Target) Kind() Kind {
	return t.kind
}

// AsX11 projects t onto its legacy window payload.
func (t Target) AsX11() (X11, bool) {
	if t.kind != KindX11 {
		return X11{}, false
	}
	return t.x11, true
}

// NativeSurface returns the native surface behind t, whatever its kind.
func (t Target) NativeSurface() (surface.NativeHandle, bool) {
	switch t.kind {
	case KindNative:
		return t.native, true
	case KindX11:
		return t.x11.Native, t.x11.HasNative
	default:
		return 0, false
	}
}

func (t Target) String() string {
	switch t.kind {
	case KindNative:
		return fmt.Sprintf("native:%d", t.native)
	case KindX11:
		if t.x11.HasNative {
			return fmt.Sprintf("x11:0x%x (xwm %d, native %d)", uint32(t.x11.Window), t.x11.Xwm, t.x11.Native)
		}
		return fmt.Sprintf("x11:0x%x (xwm %d)", uint32(t.x11.Window), t.x11.Xwm)
	default:
		return "none"
	}
}
