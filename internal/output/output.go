// Package output delivers UIDs to their consumers: simulated keystrokes into
// the focused application, a text stream, or an MQTT topic.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/SimplyPrint/nfc-wedge/internal/config"
	"github.com/SimplyPrint/nfc-wedge/internal/logging"
	"go.uber.org/multierr"
)

// ErrUnsupported is returned by NewKeyboard on platforms without keystroke injection.
var ErrUnsupported = errors.New("keyboard output is not supported on this platform")

// Emitter delivers one UID followed by the submit signal.
type Emitter interface {
	Emit(uid string) error
}

// Multi fans a UID out to several emitters.
type Multi struct {
	mu       sync.RWMutex
	names    []string
	emitters []Emitter
}

// NewMulti returns an empty fan-out.
func NewMulti() *Multi {
	return &Multi{}
}

// Add appends an emitter under name.
func (m *Multi) Add(name string, e Emitter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	m.emitters = append(m.emitters, e)
}

// Names lists the registered emitters in order.
func (m *Multi) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.names...)
}

// Emit sends uid to every emitter. A failing emitter does not stop the rest;
// all failures are returned together.
func (m *Multi) Emit(uid string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var err error
	for i, e := range m.emitters {
		if emitErr := e.Emit(uid); emitErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", m.names[i], emitErr))
		}
	}
	return err
}

// Close closes every emitter that holds resources.
func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for i, e := range m.emitters {
		if c, ok := e.(io.Closer); ok {
			if closeErr := c.Close(); closeErr != nil {
				err = multierr.Append(err, fmt.Errorf("%s: %w", m.names[i], closeErr))
			}
		}
	}
	return err
}

// New builds the emitters named in cfg.Outputs. An output that cannot be
// created is logged and skipped so the others still work.
func New(cfg *config.Config) (*Multi, error) {
	m := NewMulti()
	var errs error

	for _, name := range cfg.Outputs {
		var (
			e   Emitter
			err error
		)
		switch name {
		case config.OutputKeyboard:
			e, err = NewKeyboard()
		case config.OutputStdout:
			e = NewWriter(os.Stdout, cfg.LineEnding)
		case config.OutputMQTT:
			e, err = NewMQTT(cfg.MQTT)
		default:
			err = fmt.Errorf("unknown output %q", name)
		}
		if err != nil {
			logging.Error(logging.CatOutput, "Output unavailable", map[string]any{
				"output": name,
				"error":  err.Error(),
			})
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		m.Add(name, e)
		logging.Info(logging.CatOutput, "Output enabled", map[string]any{
			"output": name,
		})
	}
	return m, errs
}
