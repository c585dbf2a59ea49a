package selection

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/xwbridge/internal/focus"
	"github.com/1broseidon/xwbridge/internal/surface"
)

const xwm surface.XwmID = 1

// staticSource writes a fixed payload and records what was asked for.
type staticSource struct {
	payload  string
	requests []string
	err      error
}

func (s *staticSource) Send(target Target, mimeType string, w *os.File) error {
	defer w.Close()
	s.requests = append(s.requests, mimeType)
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, s.payload)
	return err
}

func newBridge(t *testing.T, src Source, focused *focus.Target) (*Bridge, *Seat) {
	t.Helper()
	seat := NewSeat()
	return NewBridge(seat, src, func() focus.Target { return *focused }, nil), seat
}

func readAll(t *testing.T, r *os.File) string {
	t.Helper()
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func pipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	return r, w
}

func x11Focus(x surface.XwmID) focus.Target {
	return focus.FromX11(focus.X11{Window: 7, Xwm: x, Native: 100, HasNative: true})
}

func TestAllowSelectionAccess(t *testing.T) {
	tests := []struct {
		name    string
		focused focus.Target
		target  Target
		want    bool
	}{
		{name: "own x11 window focused", focused: x11Focus(xwm), target: Clipboard, want: true},
		{name: "own x11 window focused primary", focused: x11Focus(xwm), target: Primary, want: true},
		{name: "other session focused", focused: x11Focus(2), target: Clipboard},
		{name: "native surface focused", focused: focus.Native(100), target: Clipboard},
		{name: "nothing focused", focused: focus.None(), target: Clipboard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			focused := tt.focused
			b, _ := newBridge(t, nil, &focused)
			assert.Equal(t, tt.want, b.AllowSelectionAccess(xwm, tt.target))
		})
	}
}

func TestAllowSelectionAccess_DisabledTarget(t *testing.T) {
	focused := x11Focus(xwm)
	b, _ := newBridge(t, nil, &focused)
	b.SetEnabled(Primary, false)

	assert.False(t, b.AllowSelectionAccess(xwm, Primary))
	assert.True(t, b.AllowSelectionAccess(xwm, Clipboard))
}

func TestEndToEnd_LegacyClipboardServedToNativeRequester(t *testing.T) {
	focused := x11Focus(xwm)
	src := &staticSource{payload: "hello from x11"}
	b, seat := newBridge(t, src, &focused)

	require.True(t, b.AllowSelectionAccess(xwm, Clipboard))
	b.NewSelection(xwm, Clipboard, []string{"text/plain"})

	state := b.State(Clipboard)
	assert.Equal(t, Owner{Kind: OwnerLegacy, Xwm: xwm}, state.Owner)
	assert.Equal(t, []string{"text/plain"}, state.Offers)

	r, w := pipe(t)
	require.NoError(t, seat.Request(Clipboard, "text/plain", w))
	assert.Equal(t, "hello from x11", readAll(t, r))

	b.ClearedSelection(xwm, Clipboard)

	r, w = pipe(t)
	err := seat.Request(Clipboard, "text/plain", w)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, "", readAll(t, r))
	assert.Equal(t, []string{"text/plain"}, src.requests)
}

func TestNewSelection_TargetsAreIndependent(t *testing.T) {
	focused := x11Focus(xwm)
	b, _ := newBridge(t, &staticSource{}, &focused)

	b.NewSelection(xwm, Primary, []string{"UTF8_STRING"})

	assert.Equal(t, OwnerNone, b.State(Clipboard).Owner.Kind)
	assert.Equal(t, OwnerLegacy, b.State(Primary).Owner.Kind)
}

func TestClearedSelection_Idempotent(t *testing.T) {
	focused := x11Focus(xwm)
	b, seat := newBridge(t, &staticSource{}, &focused)

	changes := 0
	seat.OnChange(func(Target, State) { changes++ })

	b.NewSelection(xwm, Clipboard, []string{"text/plain"})
	b.ClearedSelection(xwm, Clipboard)
	after := b.State(Clipboard)
	b.ClearedSelection(xwm, Clipboard)

	assert.Equal(t, after, b.State(Clipboard))
	assert.Equal(t, 2, changes)
}

func TestClearedSelection_LeavesNewerOwner(t *testing.T) {
	focused := x11Focus(xwm)
	b, seat := newBridge(t, &staticSource{}, &focused)

	b.NewSelection(xwm, Clipboard, []string{"text/plain"})
	native := &staticSource{payload: "native"}
	seat.SetSelection(Clipboard, []string{"text/plain;charset=utf-8"}, Owner{Kind: OwnerNative}, native)

	b.ClearedSelection(xwm, Clipboard)
	assert.Equal(t, OwnerNative, b.State(Clipboard).Owner.Kind)

	b.NewSelection(2, Clipboard, []string{"text/plain"})
	b.ClearedSelection(xwm, Clipboard)
	assert.Equal(t, Owner{Kind: OwnerLegacy, Xwm: 2}, b.State(Clipboard).Owner)
}

func TestSendSelection_StreamsNativeContent(t *testing.T) {
	focused := x11Focus(xwm)
	b, seat := newBridge(t, nil, &focused)
	native := &staticSource{payload: "copied in a native app"}
	seat.SetSelection(Clipboard, []string{"text/plain;charset=utf-8"}, Owner{Kind: OwnerNative}, native)

	r, w := pipe(t)
	b.SendSelection(xwm, Clipboard, "text/plain;charset=utf-8", w)
	assert.Equal(t, "copied in a native app", readAll(t, r))
}

func TestSendSelection_FailuresCloseTheDescriptor(t *testing.T) {
	tests := []struct {
		name  string
		setup func(seat *Seat)
		mime  string
	}{
		{name: "no selection", setup: func(*Seat) {}, mime: "text/plain"},
		{
			name: "unsupported type",
			setup: func(seat *Seat) {
				seat.SetSelection(Clipboard, []string{"image/png"}, Owner{Kind: OwnerNative}, &staticSource{})
			},
			mime: "text/plain",
		},
		{
			name: "source error",
			setup: func(seat *Seat) {
				seat.SetSelection(Clipboard, []string{"text/plain"}, Owner{Kind: OwnerNative}, &staticSource{err: errors.New("broken pipe")})
			},
			mime: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			focused := x11Focus(xwm)
			b, seat := newBridge(t, nil, &focused)
			tt.setup(seat)

			r, w := pipe(t)
			assert.NotPanics(t, func() { b.SendSelection(xwm, Clipboard, tt.mime, w) })
			assert.Equal(t, "", readAll(t, r))
		})
	}
}

func TestNewSelection_DisabledTargetIgnored(t *testing.T) {
	focused := x11Focus(xwm)
	b, _ := newBridge(t, &staticSource{}, &focused)
	b.SetEnabled(Clipboard, false)

	b.NewSelection(xwm, Clipboard, []string{"text/plain"})
	assert.Equal(t, OwnerNone, b.State(Clipboard).Owner.Kind)
}

func TestSeat_StateIsACopy(t *testing.T) {
	seat := NewSeat()
	offers := []string{"text/plain"}
	seat.SetSelection(Clipboard, offers, Owner{Kind: OwnerNative}, &staticSource{})
	offers[0] = "mutated"

	st := seat.State(Clipboard)
	st.Offers[0] = "mutated again"
	assert.Equal(t, []string{"text/plain"}, seat.State(Clipboard).Offers)
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "clipboard", Clipboard.String())
	assert.Equal(t, "primary", Primary.String())
	assert.Equal(t, "target(7)", Target(7).String())
}

func TestParseTarget(t *testing.T) {
	for _, target := range Targets {
		got, err := ParseTarget(target.String())
		require.NoError(t, err)
		assert.Equal(t, target, got)
	}
	_, err := ParseTarget("secondary")
	assert.Error(t, err)
}

func TestBytes_SendDoesNotWaitForReader(t *testing.T) {
	payload := make([]byte, 200*1024)
	seat := NewSeat()
	seat.SetSelection(Clipboard, []string{"text/plain"}, Owner{Kind: OwnerNative}, Bytes(payload))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	// Larger than a pipe buffer, and nobody is reading yet.
	require.NoError(t, seat.Request(Clipboard, "text/plain", w))

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, data, len(payload))
}
