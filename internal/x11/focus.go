package x11

import (
	"slices"

	"github.com/BurntSushi/xgb/xproto"
)

// grabTransition reports focus events caused by keyboard grabs. They do
// not move focus.
func grabTransition(mode byte) bool {
	return mode == xproto.NotifyModeGrab || mode == xproto.NotifyModeUngrab
}

// focusLeft reports whether a FocusOut on a managed window means the
// window no longer holds focus. Focus moving into one of its own children
// keeps it there.
func focusLeft(mode, detail byte) bool {
	return !grabTransition(mode) && detail != xproto.NotifyDetailInferior
}

// focusReleased reports whether a FocusIn on the root window means no
// client window holds focus, which is what the compositor does when a
// native surface is activated.
func focusReleased(mode, detail byte) bool {
	if grabTransition(mode) {
		return false
	}
	return detail == xproto.NotifyDetailNone || detail == xproto.NotifyDetailPointerRoot
}

// withFocusedState adds or removes _NET_WM_STATE_FOCUSED from states. The
// second result is false when states already match.
func withFocusedState(states []string, focused bool) ([]string, bool) {
	has := slices.Contains(states, stateFocused)
	switch {
	case focused && !has:
		return append(slices.Clone(states), stateFocused), true
	case !focused && has:
		return slices.DeleteFunc(slices.Clone(states), func(s string) bool { return s == stateFocused }), true
	default:
		return states, false
	}
}
