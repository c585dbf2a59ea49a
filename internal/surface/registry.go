package surface

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb/xproto"
)

// ErrUnknownSurface is returned when a legacy window is not registered.
var ErrUnknownSurface = errors.New("unknown surface")

// Registry is the single owner of the legacy-window, surface-id and
// native-handle mappings. Records live in an arena; both lookup maps point
// at arena indices.
//
// The Registry has no internal locking: it must only be used from the
// event loop goroutine.
type Registry struct {
	ids      *IDAllocator
	records  []Surface
	free     []int
	byLegacy map[xproto.Window]int
	byNative map[NativeHandle]int
}

// NewRegistry creates an empty registry drawing ids from ids. A nil
// allocator selects DefaultAllocator.
func NewRegistry(ids *IDAllocator) *Registry {
	if ids == nil {
		ids = DefaultAllocator
	}
	return &Registry{
		ids:      ids,
		byLegacy: make(map[xproto.Window]int),
		byNative: make(map[NativeHandle]int),
	}
}

// Register records a legacy window and returns its surface id. Registering
// a window twice returns the existing id; the override-redirect flag of the
// first registration is kept.
func (r *Registry) Register(legacy xproto.Window, overrideRedirect bool) ID {
	if idx, ok := r.byLegacy[legacy]; ok {
		return r.records[idx].ID
	}

	s := Surface{
		Legacy:           legacy,
		ID:               r.ids.Next(),
		OverrideRedirect: overrideRedirect,
		State:            StateCreated,
	}

	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
		r.records[idx] = s
	} else {
		idx = len(r.records)
		r.records = append(r.records, s)
	}
	r.byLegacy[legacy] = idx
	return s.ID
}

// BindNative associates a native surface with a registered legacy window.
// A handle already bound to another surface is moved.
func (r *Registry) BindNative(legacy xproto.Window, handle NativeHandle) error {
	idx, ok := r.byLegacy[legacy]
	if !ok {
		return fmt.Errorf("bind native surface %d to window %d: %w", handle, legacy, ErrUnknownSurface)
	}

	if prev, ok := r.byNative[handle]; ok && prev != idx {
		r.records[prev].HasNative = false
		r.records[prev].Native = 0
	}

	s := &r.records[idx]
	if s.HasNative && s.Native != handle {
		delete(r.byNative, s.Native)
	}
	s.Native = handle
	s.HasNative = true
	r.byNative[handle] = idx
	return nil
}

// UnbindNative drops the native association of a legacy window and keeps
// its surface id.
func (r *Registry) UnbindNative(legacy xproto.Window) {
	idx, ok := r.byLegacy[legacy]
	if !ok {
		return
	}
	s := &r.records[idx]
	if s.HasNative {
		delete(r.byNative, s.Native)
	}
	s.HasNative = false
	s.Native = 0
}

// LookupByLegacy returns the surface registered for a legacy window.
func (r *Registry) LookupByLegacy(legacy xproto.Window) (Surface, bool) {
	idx, ok := r.byLegacy[legacy]
	if !ok {
		return Surface{}, false
	}
	return r.records[idx], true
}

// LookupByNative returns the surface currently bound to a native handle.
func (r *Registry) LookupByNative(handle NativeHandle) (Surface, bool) {
	idx, ok := r.byNative[handle]
	if !ok {
		return Surface{}, false
	}
	return r.records[idx], true
}

// SetState records the lifecycle state of a legacy window.
func (r *Registry) SetState(legacy xproto.Window, state State) error {
	return r.update(legacy, func(s *Surface) { s.State = state })
}

// SetGeometry records the last configured geometry of a legacy window.
func (r *Registry) SetGeometry(legacy xproto.Window, geo Rect) error {
	return r.update(legacy, func(s *Surface) { s.Geometry = geo })
}

// Describe replaces the descriptive attributes of a legacy window.
func (r *Registry) Describe(legacy xproto.Window, attrs Attributes) error {
	return r.update(legacy, func(s *Surface) { s.Attributes = attrs })
}

func (r *Registry) update(legacy xproto.Window, fn func(*Surface)) error {
	idx, ok := r.byLegacy[legacy]
	if !ok {
		return fmt.Errorf("window %d: %w", legacy, ErrUnknownSurface)
	}
	fn(&r.records[idx])
	return nil
}

// Evict forgets a legacy window. Its id is never handed out again.
func (r *Registry) Evict(legacy xproto.Window) {
	idx, ok := r.byLegacy[legacy]
	if !ok {
		return
	}
	s := r.records[idx]
	if s.HasNative {
		delete(r.byNative, s.Native)
	}
	delete(r.byLegacy, legacy)
	r.records[idx] = Surface{}
	r.free = append(r.free, idx)
}

// Len returns the number of registered surfaces.
func (r *Registry) Len() int {
	return len(r.byLegacy)
}

// Legacy returns the registered legacy windows in ascending order.
func (r *Registry) Legacy() []xproto.Window {
	out := make([]xproto.Window, 0, len(r.byLegacy))
	for w := range r.byLegacy {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
