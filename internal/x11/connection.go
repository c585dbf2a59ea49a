package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
)

// ErrAnotherWM is returned when substructure redirection on the root
// window is already taken.
var ErrAnotherWM = errors.New("another window manager is already running")

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// NewConnection connects to display. An empty display uses $DISPLAY.
func NewConnection(display string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X display %q: %w", display, err)
	}

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// EventLoop runs the X11 event loop until Quit is called (blocking)
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops EventLoop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// Atom interns name.
func (c *Connection) Atom(name string) (xproto.Atom, error) {
	atom, err := xprop.Atm(c.XUtil, name)
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	return atom, nil
}

// AtomName resolves atom to its name.
func (c *Connection) AtomName(atom xproto.Atom) (string, error) {
	return xprop.AtomName(c.XUtil, atom)
}

// TopLevelWindows lists the children of the root window.
func (c *Connection) TopLevelWindows() ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query window tree: %w", err)
	}
	return tree.Children, nil
}

// becomeWM selects substructure redirection on the root window.
func (c *Connection) becomeWM() error {
	err := xproto.ChangeWindowAttributesChecked(
		c.XUtil.Conn(),
		c.Root,
		xproto.CwEventMask,
		[]uint32{
			xproto.EventMaskSubstructureRedirect |
				xproto.EventMaskSubstructureNotify |
				xproto.EventMaskFocusChange |
				xproto.EventMaskPropertyChange,
		},
	).Check()
	if err != nil {
		if _, ok := err.(xproto.AccessError); ok {
			return ErrAnotherWM
		}
		return fmt.Errorf("failed to select root events: %w", err)
	}
	return nil
}
