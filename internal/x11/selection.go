package x11

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/xwbridge/internal/selection"
)

const (
	xfixesMajorVersion = 5
	xfixesMinorVersion = 0

	// maxTransfer bounds a single-request property transfer.
	maxTransfer = 256 * 1024
)

// ErrIncrUnsupported is reported for owners that answer with INCR.
var ErrIncrUnsupported = errors.New("incremental selection transfer not supported")

// SelectionSink receives selection callbacks. It is only called from the
// event loop.
type SelectionSink interface {
	AllowSelectionAccess(target selection.Target) bool
	SendSelection(target selection.Target, mimeType string, fd *os.File)
	NewSelection(target selection.Target, mimeTypes []string)
	ClearedSelection(target selection.Target)
}

// SelectionWatcher mirrors CLIPBOARD and PRIMARY between X clients and
// the native seat. It implements selection.Source for X-owned content.
type SelectionWatcher struct {
	conn   *Connection
	loop   Poster
	sink   SelectionSink
	logger *slog.Logger

	win         xproto.Window
	selections  [2]xproto.Atom
	targetsProp [2]xproto.Atom
	contentProp [2]xproto.Atom
	targetsAtom xproto.Atom
	incrAtom    xproto.Atom

	pending [2]*transferQueue

	// Event loop only.
	nativeOffers [2][]string
}

var _ selection.Source = (*SelectionWatcher)(nil)

// NewSelectionWatcher creates the watcher and its hidden owner window.
func NewSelectionWatcher(conn *Connection, loop Poster, sink SelectionSink, logger *slog.Logger) (*SelectionWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SelectionWatcher{
		conn:   conn,
		loop:   loop,
		sink:   sink,
		logger: logger,
	}
	for _, t := range selection.Targets {
		s.pending[t] = newTransferQueue(convertTimeout)
	}

	clipboard, err := conn.Atom("CLIPBOARD")
	if err != nil {
		return nil, err
	}
	s.selections = [2]xproto.Atom{selection.Clipboard: clipboard, selection.Primary: xproto.AtomPrimary}
	for _, t := range selection.Targets {
		if s.targetsProp[t], err = conn.Atom("_XWBRIDGE_TARGETS_" + t.String()); err != nil {
			return nil, err
		}
		if s.contentProp[t], err = conn.Atom("_XWBRIDGE_CONTENT_" + t.String()); err != nil {
			return nil, err
		}
	}
	if s.targetsAtom, err = conn.Atom("TARGETS"); err != nil {
		return nil, err
	}
	if s.incrAtom, err = conn.Atom("INCR"); err != nil {
		return nil, err
	}

	win, err := xwindow.Generate(conn.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate selection window: %w", err)
	}
	if err := win.CreateChecked(conn.Root, -1, -1, 1, 1, xproto.CwEventMask, xproto.EventMaskPropertyChange); err != nil {
		return nil, fmt.Errorf("failed to create selection window: %w", err)
	}
	s.win = win.Id
	return s, nil
}

// Window returns the hidden owner window.
func (s *SelectionWatcher) Window() xproto.Window { return s.win }

// Start subscribes to selection owner changes and serves requests.
func (s *SelectionWatcher) Start() error {
	c := s.conn.XUtil.Conn()

	// https://www.x.org/releases/X11R7.7/doc/fixesproto/fixesproto.txt
	if err := xfixes.Init(c); err != nil {
		return fmt.Errorf("xfixes init: %w", err)
	}
	version, err := xfixes.QueryVersion(c, xfixesMajorVersion, xfixesMinorVersion).Reply()
	if err != nil {
		return fmt.Errorf("xfixes version handshake: %w", err)
	}
	if version.MajorVersion < xfixesMajorVersion {
		return fmt.Errorf("xfixes extension is too old: %d.%d", version.MajorVersion, version.MinorVersion)
	}

	const mask = xfixes.SelectionEventMaskSetSelectionOwner |
		xfixes.SelectionEventMaskSelectionWindowDestroy |
		xfixes.SelectionEventMaskSelectionClientClose
	for _, sel := range s.selections {
		if err := xfixes.SelectSelectionInputChecked(c, s.win, sel, mask).Check(); err != nil {
			return fmt.Errorf("xfixes select selection input: %w", err)
		}
	}

	xu := s.conn.XUtil
	xevent.HookFun(func(xu *xgbutil.XUtil, ev interface{}) bool {
		if e, ok := ev.(xfixes.SelectionNotifyEvent); ok {
			s.ownerChanged(e)
		}
		return true
	}).Connect(xu)

	xevent.SelectionNotifyFun(func(xu *xgbutil.XUtil, ev xevent.SelectionNotifyEvent) {
		s.converted(ev.SelectionNotifyEvent)
	}).Connect(xu, s.win)

	xevent.SelectionRequestFun(func(xu *xgbutil.XUtil, ev xevent.SelectionRequestEvent) {
		s.requested(*ev.SelectionRequestEvent)
	}).Connect(xu, s.win)

	return nil
}

func (s *SelectionWatcher) targetOf(sel xproto.Atom) (selection.Target, bool) {
	for _, t := range selection.Targets {
		if s.selections[t] == sel {
			return t, true
		}
	}
	return 0, false
}

// ownerChanged runs on the X goroutine.
func (s *SelectionWatcher) ownerChanged(ev xfixes.SelectionNotifyEvent) {
	target, ok := s.targetOf(ev.Selection)
	if !ok || ev.Owner == s.win {
		return
	}
	if ev.Owner == 0 {
		s.post(func() { s.sink.ClearedSelection(target) })
		return
	}
	xproto.ConvertSelection(s.conn.XUtil.Conn(), s.win, ev.Selection, s.targetsAtom, s.targetsProp[target], ev.SelectionTimestamp)
}

// converted handles the owner's answer to one of our ConvertSelection
// requests. It runs on the X goroutine.
func (s *SelectionWatcher) converted(ev *xproto.SelectionNotifyEvent) {
	target, ok := s.targetOf(ev.Selection)
	if !ok {
		return
	}
	if ev.Target == s.targetsAtom {
		s.offersReceived(target, ev.Property)
		return
	}
	s.contentReceived(target, ev)
}

func (s *SelectionWatcher) offersReceived(target selection.Target, prop xproto.Atom) {
	if prop == 0 {
		return
	}
	reply, err := xprop.GetProperty(s.conn.XUtil, s.win, "_XWBRIDGE_TARGETS_"+target.String())
	names, err := xprop.PropValAtoms(s.conn.XUtil, reply, err)
	if err != nil {
		s.logger.Warn("failed to read selection targets", "target", target, "error", err)
		return
	}
	offers := offersFromTargets(names)
	if len(offers) == 0 {
		return
	}
	s.post(func() {
		if !s.sink.AllowSelectionAccess(target) {
			return
		}
		s.sink.NewSelection(target, offers)
	})
}

// Send implements selection.Source for X-owned selections. Requests for
// one target are converted one at a time.
func (s *SelectionWatcher) Send(target selection.Target, mimeType string, fd *os.File) error {
	if int(target) >= len(s.selections) {
		fd.Close()
		return fmt.Errorf("unknown selection %s", target)
	}
	atom, err := s.conn.Atom(targetForMIME(mimeType))
	if err != nil {
		fd.Close()
		return err
	}
	if s.pending[target].push(&transfer{mime: mimeType, atom: atom, fd: fd}) {
		s.convertHead(target)
	}
	return nil
}

// convertHead asks the X owner for the content of the head transfer.
func (s *SelectionWatcher) convertHead(target selection.Target) {
	q := s.pending[target]
	t, ok := q.head()
	if !ok {
		return
	}
	q.arm(t, func(t *transfer) { s.expire(target, t) })
	xproto.ConvertSelection(s.conn.XUtil.Conn(), s.win, s.selections[target], t.atom, s.contentProp[target], xproto.TimeCurrentTime)
}

// expire abandons a conversion the owner never answered. The reader sees
// an empty transfer.
func (s *SelectionWatcher) expire(target selection.Target, t *transfer) {
	removed, more := s.pending[target].pop(t)
	if !removed {
		return
	}
	t.fd.Close()
	s.logger.Warn("x11 owner did not answer conversion", "target", target, "mime_type", t.mime)
	if more {
		s.convertHead(target)
	}
}

func (s *SelectionWatcher) contentReceived(target selection.Target, ev *xproto.SelectionNotifyEvent) {
	c := s.conn.XUtil.Conn()
	q := s.pending[target]
	t, ok := q.head()
	if !ok || ev.Target != t.atom {
		// Late answer to an expired conversion.
		if ev.Property != 0 {
			xproto.DeleteProperty(c, s.win, ev.Property)
		}
		return
	}
	removed, more := q.pop(t)
	if !removed {
		return
	}
	if more {
		defer s.convertHead(target)
	}

	if ev.Property == 0 {
		t.fd.Close()
		s.logger.Warn("x11 owner refused conversion", "target", target, "mime_type", t.mime)
		return
	}
	reply, err := xproto.GetProperty(c, true, s.win, ev.Property, xproto.GetPropertyTypeAny, 0, maxTransfer/4).Reply()
	if err != nil {
		t.fd.Close()
		s.logger.Warn("failed to read selection content", "target", target, "error", err)
		return
	}
	if reply.Type == s.incrAtom {
		t.fd.Close()
		s.logger.Warn("failed to read selection content", "target", target, "error", ErrIncrUnsupported)
		return
	}

	data := reply.Value
	go func() {
		defer t.fd.Close()
		if _, err := t.fd.Write(data); err != nil {
			s.logger.Debug("selection reader went away", "target", target, "error", err)
		}
	}()
}

// SeatChanged follows the native seat. Native-owned selections are
// claimed on the X side so X clients can paste them. Event loop only.
func (s *SelectionWatcher) SeatChanged(target selection.Target, state selection.State) {
	if int(target) >= len(s.selections) {
		return
	}
	c := s.conn.XUtil.Conn()
	wasNative := s.nativeOffers[target] != nil

	switch state.Owner.Kind {
	case selection.OwnerNative:
		s.nativeOffers[target] = append([]string{}, state.Offers...)
		xproto.SetSelectionOwner(c, s.win, s.selections[target], xproto.TimeCurrentTime)
	case selection.OwnerNone:
		s.nativeOffers[target] = nil
		if wasNative {
			xproto.SetSelectionOwner(c, 0, s.selections[target], xproto.TimeCurrentTime)
		}
	default:
		s.nativeOffers[target] = nil
	}
}

// requested serves an X client pasting a native-owned selection. It runs
// on the X goroutine.
func (s *SelectionWatcher) requested(ev xproto.SelectionRequestEvent) {
	if ev.Property == 0 {
		ev.Property = ev.Target
	}
	target, ok := s.targetOf(ev.Selection)
	if !ok {
		s.notify(ev, false)
		return
	}
	name, err := s.conn.AtomName(ev.Target)
	if err != nil {
		s.notify(ev, false)
		return
	}

	s.post(func() {
		offers := s.nativeOffers[target]
		if offers == nil || !s.sink.AllowSelectionAccess(target) {
			s.notify(ev, false)
			return
		}
		if ev.Target == s.targetsAtom {
			s.replyTargets(ev, offers)
			return
		}
		mime, ok := mimeForTarget(name)
		if !ok || !slices.Contains(offers, mime) {
			s.notify(ev, false)
			return
		}

		err := pipeTo(
			func(w *os.File) { s.sink.SendSelection(target, mime, w) },
			func(r *os.File) { s.forward(ev, r) },
		)
		if err != nil {
			s.logger.Error("failed to create selection pipe", "error", err)
			s.notify(ev, false)
		}
	})
}

// forward copies the native content into the requestor's property.
func (s *SelectionWatcher) forward(ev xproto.SelectionRequestEvent, r *os.File) {
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, maxTransfer+1))
	if err != nil || len(data) > maxTransfer {
		s.logger.Warn("selection content unavailable for x11", "size", len(data), "error", err)
		s.notify(ev, false)
		return
	}
	err = xproto.ChangePropertyChecked(s.conn.XUtil.Conn(), xproto.PropModeReplace, ev.Requestor,
		ev.Property, ev.Target, 8, uint32(len(data)), data).Check()
	s.notify(ev, err == nil)
}

func (s *SelectionWatcher) replyTargets(ev xproto.SelectionRequestEvent, offers []string) {
	names := targetsFromOffers(offers)
	buf := make([]byte, 0, len(names)*4)
	for _, name := range names {
		atom, err := s.conn.Atom(name)
		if err != nil {
			continue
		}
		b := make([]byte, 4)
		xgb.Put32(b, uint32(atom))
		buf = append(buf, b...)
	}
	err := xproto.ChangePropertyChecked(s.conn.XUtil.Conn(), xproto.PropModeReplace, ev.Requestor,
		ev.Property, xproto.AtomAtom, 32, uint32(len(buf)/4), buf).Check()
	s.notify(ev, err == nil)
}

// notify completes a SelectionRequest. A refusal carries no property.
func (s *SelectionWatcher) notify(req xproto.SelectionRequestEvent, ok bool) {
	ev := xproto.SelectionNotifyEvent{
		Time:      req.Time,
		Requestor: req.Requestor,
		Selection: req.Selection,
		Target:    req.Target,
		Property:  req.Property,
	}
	if !ok {
		ev.Property = 0
	}
	xproto.SendEvent(s.conn.XUtil.Conn(), false, req.Requestor, xproto.EventMaskNoEvent, string(ev.Bytes()))
}

func (s *SelectionWatcher) post(fn func()) {
	if err := s.loop.Post(fn); err != nil {
		s.logger.Debug("dropping selection event", "error", err)
	}
}
