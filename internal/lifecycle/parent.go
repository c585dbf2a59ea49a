package lifecycle

import (
	"github.com/1broseidon/xwbridge/internal/focus"
	"github.com/1broseidon/xwbridge/internal/surface"
)

// ResolveParent returns the surface id of the window that owns w.
//
// A declared transient-for window wins when it is registered. Override-
// redirect windows without a known owner fall back to whatever surface
// holds keyboard focus; regular windows without one are top-level.
func ResolveParent(reg *surface.Registry, w Window, current focus.Target) (surface.ID, bool) {
	if owner, ok := w.TransientFor(); ok {
		if s, ok := reg.LookupByLegacy(owner); ok && s.Legacy != w.WindowID() {
			return s.ID, true
		}
	}

	if !w.OverrideRedirect() {
		return 0, false
	}

	handle, ok := current.NativeSurface()
	if !ok {
		return 0, false
	}
	s, ok := reg.LookupByNative(handle)
	if !ok || s.Legacy == w.WindowID() {
		return 0, false
	}
	return s.ID, true
}
