package selection

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/xwbridge/internal/focus"
	"github.com/1broseidon/xwbridge/internal/surface"
)

// Bridge mediates selection access between legacy sessions and the native
// seat. All methods must be called from the event loop goroutine.
type Bridge struct {
	seat     *Seat
	legacy   Source
	focus    func() focus.Target
	disabled [2]bool
	logger   *slog.Logger
}

// NewBridge creates a bridge over seat. legacy serves native requests for
// selections owned by the legacy side.
func NewBridge(seat *Seat, legacy Source, current func() focus.Target, logger *slog.Logger) *Bridge {
	if current == nil {
		current = focus.None
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		seat:   seat,
		legacy: legacy,
		focus:  current,
		logger: logger,
	}
}

// SetEnabled turns bridging of target on or off.
func (b *Bridge) SetEnabled(target Target, enabled bool) {
	if int(target) < len(b.disabled) {
		b.disabled[target] = !enabled
	}
}

// Enabled reports whether target is bridged.
func (b *Bridge) Enabled(target Target) bool {
	return int(target) < len(b.disabled) && !b.disabled[target]
}

// AllowSelectionAccess reports whether the legacy session xwm may read or
// write target. Access requires one of its own windows to hold keyboard
// focus.
func (b *Bridge) AllowSelectionAccess(xwm surface.XwmID, target Target) bool {
	if !b.Enabled(target) {
		return false
	}
	x, ok := b.focus().AsX11()
	if ok && x.Xwm == xwm {
		return true
	}
	b.logger.Debug("selection access denied", "xwm", xwm, "target", target)
	return false
}

// SendSelection streams the native selection content into fd for the
// legacy side. Failures leave the requester with an empty transfer.
func (b *Bridge) SendSelection(xwm surface.XwmID, target Target, mimeType string, fd *os.File) {
	if err := b.seat.Request(target, mimeType, fd); err != nil {
		b.logger.Error("failed to request native selection for x11",
			"xwm", xwm,
			"target", target,
			"mime_type", mimeType,
			"error", fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}
}

// NewSelection installs the offers announced by a legacy owner as the
// native selection. Content is fetched lazily through the legacy source.
func (b *Bridge) NewSelection(xwm surface.XwmID, target Target, mimeTypes []string) {
	if !b.Enabled(target) {
		return
	}
	b.logger.Debug("selection from x11", "xwm", xwm, "target", target, "mime_types", mimeTypes)
	b.seat.SetSelection(target, mimeTypes, Owner{Kind: OwnerLegacy, Xwm: xwm}, b.legacy)
}

// ClearedSelection drops the native selection if it still belongs to the
// legacy session xwm. A newer owner is left untouched.
func (b *Bridge) ClearedSelection(xwm surface.XwmID, target Target) {
	owner, ok := b.seat.Owner(target)
	if !ok || owner.Kind != OwnerLegacy || owner.Xwm != xwm {
		return
	}
	b.logger.Debug("selection cleared by x11", "xwm", xwm, "target", target)
	b.seat.Clear(target)
}

// State returns the current state of target.
func (b *Bridge) State(target Target) State {
	return b.seat.State(target)
}
