// Package lifecycle tracks legacy windows from creation to destruction and
// reports every transition to the UI engine.
package lifecycle

import (
	"errors"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xwbridge/internal/surface"
)

// ErrConfigurationRejected wraps a failed attempt to re-geometry a window.
var ErrConfigurationRejected = errors.New("configuration rejected")

// Window is the compatibility layer's view of one legacy window.
type Window interface {
	WindowID() xproto.Window
	OverrideRedirect() bool
	Geometry() surface.Rect
	Configure(geo surface.Rect) error
	SetMapped(mapped bool) error
	SetActivated(activated bool) error
	// NativeSurface reports the native surface backing the window, once
	// the client has requested one.
	NativeSurface() (surface.NativeHandle, bool)
	TransientFor() (xproto.Window, bool)
	Attributes() surface.Attributes
}

// ConfigureRequest carries the fields a client asked to change. Nil
// fields were not part of the request.
type ConfigureRequest struct {
	X      *int
	Y      *int
	Width  *int
	Height *int
}

// ResizeEdge names the window edge grabbed by an interactive resize.
type ResizeEdge uint32

const (
	ResizeEdgeTopLeft ResizeEdge = iota
	ResizeEdgeTop
	ResizeEdgeTopRight
	ResizeEdgeRight
	ResizeEdgeBottomRight
	ResizeEdgeBottom
	ResizeEdgeBottomLeft
	ResizeEdgeLeft
)
