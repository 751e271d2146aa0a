//go:build !linux && !windows

package output

// Keyboard is unavailable on this platform.
type Keyboard struct{}

// NewKeyboard always fails with ErrUnsupported.
func NewKeyboard() (*Keyboard, error) {
	return nil, ErrUnsupported
}

func (k *Keyboard) Emit(uid string) error {
	return ErrUnsupported
}
