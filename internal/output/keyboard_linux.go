//go:build linux

package output

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/SimplyPrint/nfc-wedge/internal/logging"
)

// uinput ioctls and event types (linux/uinput.h, linux/input.h).
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	busVirtual = 0x06

	uinputPath = "/dev/uinput"
)

// uinputUserDev is struct uinput_user_dev.
type uinputUserDev struct {
	Name         [80]byte
	BusType      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}

// inputEvent is struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Keyboard types UIDs through a virtual uinput keyboard.
type Keyboard struct {
	mu   sync.Mutex
	file *os.File
}

// NewKeyboard creates the virtual keyboard. Needs write access to /dev/uinput.
func NewKeyboard() (*Keyboard, error) {
	f, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uinputPath, err)
	}

	if err := setupDevice(int(f.Fd()), f); err != nil {
		f.Close()
		return nil, err
	}

	// Give the input stack time to pick up the new device before the first key.
	time.Sleep(200 * time.Millisecond)

	logging.Info(logging.CatOutput, "Virtual keyboard created", map[string]any{
		"device": uinputPath,
	})
	return &Keyboard{file: f}, nil
}

func setupDevice(fd int, f *os.File) error {
	for _, ev := range []int{evKey, evSyn} {
		if err := unix.IoctlSetInt(fd, uiSetEvBit, ev); err != nil {
			return fmt.Errorf("UI_SET_EVBIT: %w", err)
		}
	}
	for _, code := range usedKeys() {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(code)); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}

	dev := uinputUserDev{
		BusType: busVirtual,
		Vendor:  0x1209,
		Product: 0x5743,
		Version: 1,
	}
	copy(dev.Name[:], "nfc-wedge keyboard")

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &dev); err != nil {
		return fmt.Errorf("encode device: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write device: %w", err)
	}

	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

// Emit types uid and presses Enter.
func (k *Keyboard) Emit(uid string) error {
	events, err := keySequence(uid)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.file == nil {
		return os.ErrClosed
	}
	for _, e := range events {
		value := int32(0)
		if e.down {
			value = 1
		}
		if err := k.write(evKey, e.code, value); err != nil {
			return err
		}
		if err := k.write(evSyn, synReport, 0); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) write(typ, code uint16, value int32) error {
	var buf bytes.Buffer
	ev := inputEvent{Type: typ, Code: code, Value: value}
	if err := binary.Write(&buf, binary.NativeEndian, &ev); err != nil {
		return err
	}
	if _, err := k.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write key event: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.file == nil {
		return nil
	}
	destroyErr := unix.IoctlSetInt(int(k.file.Fd()), uiDevDestroy, 0)
	closeErr := k.file.Close()
	k.file = nil
	if destroyErr != nil {
		return fmt.Errorf("UI_DEV_DESTROY: %w", destroyErr)
	}
	return closeErr
}
