// Package selection arbitrates clipboard and primary selection ownership
// between the legacy X11 side and native clients.
package selection

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/1broseidon/xwbridge/internal/surface"
)

var (
	// ErrNoSelection is returned when nothing owns the requested selection.
	ErrNoSelection = errors.New("no selection")
	// ErrUnsupportedType is returned for a MIME type the owner did not offer.
	ErrUnsupportedType = errors.New("unsupported mime type")
	// ErrTransferFailed wraps a failed content transfer.
	ErrTransferFailed = errors.New("selection transfer failed")
)

// Target is one independent selection slot.
type Target uint8

const (
	Clipboard Target = iota
	Primary
)

// Targets lists every selection target.
var Targets = []Target{Clipboard, Primary}

func (t Target) String() string {
	switch t {
	case Clipboard:
		return "clipboard"
	case Primary:
		return "primary"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

// ParseTarget resolves a selection name as printed by Target.String.
func ParseTarget(name string) (Target, error) {
	for _, t := range Targets {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown selection %q", name)
}

// OwnerKind tells which side owns a selection.
type OwnerKind uint8

const (
	OwnerNone OwnerKind = iota
	OwnerLegacy
	OwnerNative
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerLegacy:
		return "legacy"
	case OwnerNative:
		return "native"
	default:
		return "none"
	}
}

// Owner is the metadata recorded with an installed selection.
type Owner struct {
	Kind OwnerKind
	// Xwm is the legacy session that installed the selection. Only set for
	// OwnerLegacy.
	Xwm surface.XwmID
}

// State is a snapshot of one selection slot.
type State struct {
	Owner  Owner
	Offers []string
}

// Source produces selection content on demand. Send takes ownership of w
// and must close it once the transfer is done, including on error.
type Source interface {
	Send(target Target, mimeType string, w *os.File) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(target Target, mimeType string, w *os.File) error

// Send calls f.
func (f SourceFunc) Send(target Target, mimeType string, w *os.File) error {
	return f(target, mimeType, w)
}

// Bytes serves fixed content for every offered type. The write happens on
// its own goroutine so Send never waits for the reader.
type Bytes []byte

// Send writes b to w and closes it.
func (b Bytes) Send(_ Target, _ string, w *os.File) error {
	go func() {
		defer w.Close()
		w.Write(b)
	}()
	return nil
}

type slot struct {
	owner  Owner
	offers []string
	source Source
}

// Seat is the native selection model of a single seat.
// It must only be used from the event loop goroutine.
type Seat struct {
	slots    [2]slot
	onChange func(Target, State)
}

// NewSeat creates a seat with empty selections.
func NewSeat() *Seat {
	return &Seat{}
}

// OnChange registers fn to be called after every selection change.
func (s *Seat) OnChange(fn func(Target, State)) {
	s.onChange = fn
}

// SetSelection installs a new selection, replacing the previous owner.
func (s *Seat) SetSelection(target Target, offers []string, owner Owner, src Source) {
	sl := s.slot(target)
	if sl == nil {
		return
	}
	*sl = slot{
		owner:  owner,
		offers: slices.Clone(offers),
		source: src,
	}
	s.changed(target)
}

// Clear removes the selection of target.
func (s *Seat) Clear(target Target) {
	sl := s.slot(target)
	if sl == nil || sl.owner.Kind == OwnerNone {
		return
	}
	*sl = slot{}
	s.changed(target)
}

// Owner returns the metadata of the current selection, if any.
func (s *Seat) Owner(target Target) (Owner, bool) {
	sl := s.slot(target)
	if sl == nil || sl.owner.Kind == OwnerNone {
		return Owner{}, false
	}
	return sl.owner, true
}

// State returns a snapshot of target.
func (s *Seat) State(target Target) State {
	sl := s.slot(target)
	if sl == nil {
		return State{}
	}
	return State{Owner: sl.owner, Offers: slices.Clone(sl.offers)}
}

// Request streams the current selection content as mimeType into fd. The
// seat owns fd from here on: it is closed on every path.
func (s *Seat) Request(target Target, mimeType string, fd *os.File) error {
	sl := s.slot(target)
	if sl == nil || sl.owner.Kind == OwnerNone || sl.source == nil {
		fd.Close()
		return fmt.Errorf("request %s: %w", target, ErrNoSelection)
	}
	if !slices.Contains(sl.offers, mimeType) {
		fd.Close()
		return fmt.Errorf("request %s as %q: %w", target, mimeType, ErrUnsupportedType)
	}
	return sl.source.Send(target, mimeType, fd)
}

func (s *Seat) slot(target Target) *slot {
	if int(target) >= len(s.slots) {
		return nil
	}
	return &s.slots[target]
}

func (s *Seat) changed(target Target) {
	if s.onChange != nil {
		s.onChange(target, s.State(target))
	}
}
