package surface

import "sync/atomic"

// IDAllocator hands out surface ids. Ids start at 1 and are never reissued,
// so the UI engine cannot confuse a new window with a destroyed one.
type IDAllocator struct {
	last atomic.Uint64
}

// NewIDAllocator creates an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next unused id.
func (a *IDAllocator) Next() ID {
	return ID(a.last.Add(1))
}

// Last returns the most recently allocated id, or 0 if none was allocated.
func (a *IDAllocator) Last() ID {
	return ID(a.last.Load())
}

// DefaultAllocator is the process-wide allocator.
var DefaultAllocator = NewIDAllocator()
