package output

import "fmt"

// Linux input event codes (linux/input-event-codes.h) for the keys a wedge types.
const (
	keyEnter     uint16 = 28
	keyLeftShift uint16 = 42
)

type keyStroke struct {
	code  uint16
	shift bool
}

var evdevKeys = map[rune]keyStroke{
	'1': {2, false}, '2': {3, false}, '3': {4, false}, '4': {5, false}, '5': {6, false},
	'6': {7, false}, '7': {8, false}, '8': {9, false}, '9': {10, false}, '0': {11, false},
	'-': {12, false}, '_': {12, true}, ' ': {57, false}, ':': {39, true}, '.': {52, false},

	'q': {16, false}, 'w': {17, false}, 'e': {18, false}, 'r': {19, false}, 't': {20, false},
	'y': {21, false}, 'u': {22, false}, 'i': {23, false}, 'o': {24, false}, 'p': {25, false},
	'a': {30, false}, 's': {31, false}, 'd': {32, false}, 'f': {33, false}, 'g': {34, false},
	'h': {35, false}, 'j': {36, false}, 'k': {37, false}, 'l': {38, false},
	'z': {44, false}, 'x': {45, false}, 'c': {46, false}, 'v': {47, false}, 'b': {48, false},
	'n': {49, false}, 'm': {50, false},
}

// evdevKey maps a character to its US layout key and shift state.
func evdevKey(r rune) (keyStroke, bool) {
	if r >= 'A' && r <= 'Z' {
		k, ok := evdevKeys[r+('a'-'A')]
		k.shift = true
		return k, ok
	}
	k, ok := evdevKeys[r]
	return k, ok
}

// keyEvent is one press or release.
type keyEvent struct {
	code uint16
	down bool
}

// keySequence returns the presses and releases that type text followed by Enter.
func keySequence(text string) ([]keyEvent, error) {
	events := make([]keyEvent, 0, len(text)*4+2)
	for _, r := range text {
		k, ok := evdevKey(r)
		if !ok {
			return nil, fmt.Errorf("no key for %q", r)
		}
		if k.shift {
			events = append(events, keyEvent{keyLeftShift, true})
		}
		events = append(events, keyEvent{k.code, true}, keyEvent{k.code, false})
		if k.shift {
			events = append(events, keyEvent{keyLeftShift, false})
		}
	}
	return append(events, keyEvent{keyEnter, true}, keyEvent{keyEnter, false}), nil
}

// usedKeys lists every code keySequence can produce.
func usedKeys() []uint16 {
	seen := map[uint16]bool{keyEnter: true, keyLeftShift: true}
	keys := []uint16{keyEnter, keyLeftShift}
	for _, k := range evdevKeys {
		if !seen[k.code] {
			seen[k.code] = true
			keys = append(keys, k.code)
		}
	}
	return keys
}
