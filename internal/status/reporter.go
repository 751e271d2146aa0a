// Package status turns read outcomes into operator status lines and UID output,
// suppressing consecutive duplicates.
package status

import (
	"sync"

	"github.com/SimplyPrint/nfc-wedge/internal/core"
	"github.com/SimplyPrint/nfc-wedge/internal/logging"
)

// Toggle status texts.
const (
	ReaderOn  = "reader turned on"
	ReaderOff = "reader turned off"
)

// Surface is an append-only text sink shown to the operator.
type Surface interface {
	Append(text string)
}

// Emitter delivers a UID to the foreground consumer.
type Emitter interface {
	Emit(uid string) error
}

// Reporter forwards status lines to its surfaces, dropping repeats of the last
// accepted line. While the reader is turned off only toggle lines get through,
// so the loop cannot overwrite the off notice with its own chatter.
type Reporter struct {
	mu       sync.Mutex
	last     string
	surfaces []Surface
	emitter  Emitter
}

// NewReporter creates a reporter. emitter may be nil.
func NewReporter(emitter Emitter, surfaces ...Surface) *Reporter {
	return &Reporter{
		emitter:  emitter,
		surfaces: surfaces,
	}
}

// Last returns the last accepted status line.
func (r *Reporter) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// ReportText applies the dedup policy and appends text to every surface when
// accepted. It reports whether the line was accepted.
func (r *Reporter) ReportText(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acceptLocked(text)
}

func (r *Reporter) acceptLocked(text string) bool {
	if r.last == ReaderOff {
		if text != ReaderOn && text != ReaderOff {
			return false
		}
	} else if text == r.last {
		return false
	}

	r.last = text
	for _, s := range r.surfaces {
		s.Append(text)
	}
	return true
}

// Report reports the outcome's status line. A UID outcome whose line was
// accepted is emitted exactly once; suppressed repeats are not emitted.
func (r *Reporter) Report(outcome core.Outcome) bool {
	r.mu.Lock()
	accepted := r.acceptLocked(outcome.Status())
	emitter := r.emitter
	r.mu.Unlock()

	if !accepted {
		return false
	}

	logging.Debug(logging.CatLoop, "Status changed", map[string]any{
		"kind":   outcome.Kind.String(),
		"reader": outcome.Reader,
	})

	if outcome.Kind == core.KindUID && emitter != nil {
		if err := emitter.Emit(outcome.UID); err != nil {
			logging.Error(logging.CatOutput, "Failed to emit UID", map[string]any{
				"uid":   outcome.UID,
				"error": err.Error(),
			})
		} else {
			logging.Info(logging.CatOutput, "UID emitted", map[string]any{
				"uid": outcome.UID,
			})
		}
	}
	return true
}
