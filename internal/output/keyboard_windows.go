//go:build windows

package output

import (
	"fmt"
	"sync"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	inputKeyboard = 1

	keyeventfKeyUp   = 0x0002
	keyeventfUnicode = 0x0004

	vkReturn = 0x0D
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

// keybdInput is KEYBDINPUT.
type keybdInput struct {
	vk        uint16
	scan      uint16
	flags     uint32
	time      uint32
	extraInfo uintptr
}

// input is INPUT with the keyboard arm of the union. The padding makes up the
// size of MOUSEINPUT, the largest member.
type input struct {
	typ     uint32
	ki      keybdInput
	padding [8]byte
}

// Keyboard types UIDs into the focused window with SendInput.
type Keyboard struct {
	mu sync.Mutex
}

// NewKeyboard checks that SendInput is available.
func NewKeyboard() (*Keyboard, error) {
	if err := procSendInput.Find(); err != nil {
		return nil, fmt.Errorf("SendInput: %w", err)
	}
	return &Keyboard{}, nil
}

// Emit types uid as unicode characters and presses Enter.
func (k *Keyboard) Emit(uid string) error {
	inputs := make([]input, 0, len(uid)*2+2)
	for _, r := range uid {
		for _, unit := range utf16.Encode([]rune{r}) {
			inputs = append(inputs,
				input{typ: inputKeyboard, ki: keybdInput{scan: unit, flags: keyeventfUnicode}},
				input{typ: inputKeyboard, ki: keybdInput{scan: unit, flags: keyeventfUnicode | keyeventfKeyUp}},
			)
		}
	}
	inputs = append(inputs,
		input{typ: inputKeyboard, ki: keybdInput{vk: vkReturn}},
		input{typ: inputKeyboard, ki: keybdInput{vk: vkReturn, flags: keyeventfKeyUp}},
	)

	k.mu.Lock()
	defer k.mu.Unlock()

	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return fmt.Errorf("SendInput sent %d of %d events: %w", n, len(inputs), err)
	}
	return nil
}
