// Package notifytest provides a recording notify.Channel for tests.
package notifytest

import "sync"

// Call is one recorded method invocation.
type Call struct {
	Method string
	Args   any
}

// Recorder records every invocation in order.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	Err   error
}

// InvokeMethod records the call and returns r.Err.
func (r *Recorder) InvokeMethod(method string, args any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.calls = append(r.calls, Call{Method: method, Args: args})
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Methods returns the recorded method names in order.
func (r *Recorder) Methods() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
