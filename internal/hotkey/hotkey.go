// Package hotkey delivers a global key press, grabbed on the X11 root
// window, to a callback.
package hotkey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// DefaultKey toggles playback.
const DefaultKey = "F7"

// keysyms for the named keys we accept besides function keys
var namedKeysyms = map[string]xproto.Keysym{
	"pause":       0xff13,
	"scroll_lock": 0xff14,
	"print":       0xff61,
	"insert":      0xff63,
	"home":        0xff50,
	"end":         0xff57,
}

var modifierMasks = map[string]uint16{
	"shift": xproto.ModMaskShift,
	"ctrl":  xproto.ModMaskControl,
	"alt":   xproto.ModMask1,
	"super": xproto.ModMask4,
}

// lock modifiers that must not prevent the grab from matching
var lockMasks = []uint16{
	0,
	xproto.ModMaskLock,
	xproto.ModMask2,
	xproto.ModMaskLock | xproto.ModMask2,
}

// Key is a keysym with required modifiers.
type Key struct {
	Keysym    xproto.Keysym
	Modifiers uint16
}

// ParseKey accepts names like "F7", "ctrl+alt+F7" or "Pause".
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "+")
	var k Key

	for _, mod := range parts[:len(parts)-1] {
		mask, ok := modifierMasks[strings.ToLower(strings.TrimSpace(mod))]
		if !ok {
			return Key{}, fmt.Errorf("unknown modifier %q in %q", mod, s)
		}
		k.Modifiers |= mask
	}

	name := strings.TrimSpace(parts[len(parts)-1])
	sym, err := keysym(name)
	if err != nil {
		return Key{}, fmt.Errorf("%w in %q", err, s)
	}
	k.Keysym = sym
	return k, nil
}

func keysym(name string) (xproto.Keysym, error) {
	lower := strings.ToLower(name)
	if sym, ok := namedKeysyms[lower]; ok {
		return sym, nil
	}
	if strings.HasPrefix(lower, "f") {
		n, err := strconv.Atoi(lower[1:])
		if err == nil && n >= 1 && n <= 35 {
			// XK_F1 is 0xffbe and F1..F35 are contiguous
			return xproto.Keysym(0xffbe + n - 1), nil
		}
	}
	return 0, fmt.Errorf("unsupported key %q", name)
}
