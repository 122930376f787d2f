package hotkey

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
)

// X11Listener grabs one key on the root window. A single event loop reads
// the connection until Close and hands presses to the current callback.
type X11Listener struct {
	conn     *xgb.Conn
	root     xproto.Window
	key      Key
	keycodes []xproto.Keycode

	mu       sync.Mutex
	grabbed  bool
	onPress  func()
	loopOnce sync.Once
}

// NewX11Listener connects to the X server and resolves the key.
func NewX11Listener(name string) (*X11Listener, error) {
	key, err := ParseKey(name)
	if err != nil {
		return nil, err
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	l := &X11Listener{
		conn: conn,
		root: setup.DefaultScreen(conn).Root,
		key:  key,
	}

	l.keycodes, err = keycodesFor(conn, setup, key.Keysym)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// keycodesFor finds every keycode whose mapping contains sym.
func keycodesFor(conn *xgb.Conn, setup *xproto.SetupInfo, sym xproto.Keysym) ([]xproto.Keycode, error) {
	first := setup.MinKeycode
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)

	reply, err := xproto.GetKeyboardMapping(conn, first, count).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get keyboard mapping: %w", err)
	}

	per := int(reply.KeysymsPerKeycode)
	var codes []xproto.Keycode
	for i := 0; i < int(count); i++ {
		for j := 0; j < per; j++ {
			if reply.Keysyms[i*per+j] == sym {
				codes = append(codes, xproto.Keycode(int(first)+i))
				break
			}
		}
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("keysym %#x is not on the keyboard", uint32(sym))
	}
	return codes, nil
}

// Listen grabs the key and calls onPress for each press until Unlisten.
func (l *X11Listener) Listen(onPress func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.grabbed {
		return fmt.Errorf("hotkey already grabbed")
	}

	for _, code := range l.keycodes {
		for _, lock := range lockMasks {
			err := xproto.GrabKeyChecked(
				l.conn, true, l.root,
				l.key.Modifiers|lock, code,
				xproto.GrabModeAsync, xproto.GrabModeAsync,
			).Check()
			if err != nil {
				l.ungrab()
				return fmt.Errorf("failed to grab key (is another program using it?): %w", err)
			}
		}
	}

	l.grabbed = true
	l.onPress = onPress
	l.loopOnce.Do(func() { go l.loop() })

	logger.WithComponent("hotkey").Info().
		Uint32("keysym", uint32(l.key.Keysym)).
		Uint16("modifiers", l.key.Modifiers).
		Msg("Hotkey grabbed")
	return nil
}

// loop runs until the connection is closed.
func (l *X11Listener) loop() {
	log := logger.WithComponent("hotkey")

	for {
		ev, err := l.conn.WaitForEvent()
		if ev == nil && err == nil {
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("X event error")
			continue
		}
		l.handle(ev)
	}
}

// handle delivers a key press to the callback registered at the time of the
// press. Presses while not listening are dropped.
func (l *X11Listener) handle(ev xgb.Event) {
	if _, ok := ev.(xproto.KeyPressEvent); !ok {
		return
	}

	l.mu.Lock()
	onPress := l.onPress
	l.mu.Unlock()

	if onPress == nil {
		return
	}
	logger.WithComponent("hotkey").Debug().Msg("Hotkey pressed")
	onPress()
}

func (l *X11Listener) ungrab() {
	for _, code := range l.keycodes {
		for _, lock := range lockMasks {
			xproto.UngrabKey(l.conn, code, l.root, l.key.Modifiers|lock)
		}
	}
}

// Unlisten releases the grab. The connection and its event loop stay open.
func (l *X11Listener) Unlisten() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.grabbed {
		return
	}
	l.ungrab()
	l.conn.Sync()
	l.grabbed = false
	l.onPress = nil
}

// Close releases the grab and closes the connection, which ends the event
// loop.
func (l *X11Listener) Close() error {
	l.Unlisten()
	l.conn.Close()
	return nil
}
