package surface

import (
	"github.com/BurntSushi/xgb/xproto"
)

// ID is the opaque surface identifier exposed to the UI engine.
type ID uint64

// NativeHandle identifies a native compositor surface. Its value is the
// native surface id the UI engine already knows.
type NativeHandle uint64

// State is the lifecycle state of a legacy window.
type State uint8

const (
	StateCreated State = iota
	StateMapped
	StateUnmapped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateMapped:
		return "mapped"
	case StateUnmapped:
		return "unmapped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Rect describes a window geometry in logical coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// AtOrigin returns r moved to (0,0) with its size unchanged.
func (r Rect) AtOrigin() Rect {
	return Rect{Width: r.Width, Height: r.Height}
}

// Attributes are the descriptive strings a client may set on its window.
// An empty string means the client did not provide the value.
type Attributes struct {
	Title     string
	Class     string
	Instance  string
	StartupID string
}

// Surface is a snapshot of one legacy window known to the Registry.
type Surface struct {
	Legacy           xproto.Window
	ID               ID
	Native           NativeHandle
	HasNative        bool
	OverrideRedirect bool
	State            State
	Geometry         Rect
	Attributes
}

// XwmID identifies one compatibility-server instance.
type XwmID uint32
