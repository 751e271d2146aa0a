package status

import (
	"errors"
	"sync"
	"testing"

	"github.com/SimplyPrint/nfc-wedge/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSurface struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSurface) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
}

type recordingEmitter struct {
	uids []string
	err  error
}

func (e *recordingEmitter) Emit(uid string) error {
	e.uids = append(e.uids, uid)
	return e.err
}

func TestReportTextSuppressesRepeats(t *testing.T) {
	surface := &recordingSurface{}
	r := NewReporter(nil, surface)

	assert.True(t, r.ReportText("No card detected"))
	assert.False(t, r.ReportText("No card detected"))
	assert.True(t, r.ReportText("Could not begin transaction."))
	assert.True(t, r.ReportText("No card detected"))

	assert.Equal(t, []string{"No card detected", "Could not begin transaction.", "No card detected"}, surface.lines)
	assert.Equal(t, "No card detected", r.Last())
}

func TestReportTextEmptyFirstLine(t *testing.T) {
	surface := &recordingSurface{}
	r := NewReporter(nil, surface)

	assert.False(t, r.ReportText(""), "empty text equals the initial last status")
	assert.Empty(t, surface.lines)
}

func TestReportTextWhileTurnedOff(t *testing.T) {
	surface := &recordingSurface{}
	r := NewReporter(nil, surface)

	require.True(t, r.ReportText(ReaderOff))
	assert.False(t, r.ReportText("No card detected"))
	assert.False(t, r.ReportText("Card detected (04-A1-B2-C3)"))
	assert.True(t, r.ReportText(ReaderOff), "off is accepted even when repeated")
	assert.True(t, r.ReportText(ReaderOn))
	assert.True(t, r.ReportText("No card detected"))

	assert.Equal(t, []string{ReaderOff, ReaderOff, ReaderOn, "No card detected"}, surface.lines)
}

func TestReportTextOnIsDeduplicated(t *testing.T) {
	r := NewReporter(nil)

	assert.True(t, r.ReportText(ReaderOn))
	assert.False(t, r.ReportText(ReaderOn))
}

func TestReportEmitsOncePerAcceptedUID(t *testing.T) {
	surface := &recordingSurface{}
	emitter := &recordingEmitter{}
	r := NewReporter(emitter, surface)

	uid := core.UID("04-A1-B2-C3")
	assert.True(t, r.Report(uid))
	assert.False(t, r.Report(uid), "same card still on the reader")
	assert.True(t, r.Report(core.NoCard()))
	assert.True(t, r.Report(uid))

	assert.Equal(t, []string{"04-A1-B2-C3", "04-A1-B2-C3"}, emitter.uids)
	assert.Equal(t, []string{
		"Card detected (04-A1-B2-C3)",
		"No card detected",
		"Card detected (04-A1-B2-C3)",
	}, surface.lines)
}

func TestReportNonUIDDoesNotEmit(t *testing.T) {
	emitter := &recordingEmitter{}
	r := NewReporter(emitter)

	r.Report(core.NoCard())
	r.Report(core.TransactionFailed())
	r.Report(core.TransportError("0x80100069"))
	r.Report(core.NoUIDReceived())

	assert.Empty(t, emitter.uids)
}

func TestReportWhileTurnedOffDoesNotEmit(t *testing.T) {
	emitter := &recordingEmitter{}
	r := NewReporter(emitter)

	r.ReportText(ReaderOff)
	assert.False(t, r.Report(core.UID("01-02-03-04")))
	assert.Empty(t, emitter.uids)
}

func TestReportEmitterErrorIsNotFatal(t *testing.T) {
	surface := &recordingSurface{}
	emitter := &recordingEmitter{err: errors.New("no uinput")}
	r := NewReporter(emitter, surface)

	assert.True(t, r.Report(core.UID("01-02-03-04")))
	assert.Equal(t, []string{"Card detected (01-02-03-04)"}, surface.lines)
}

func TestReportNoReadersRepeated(t *testing.T) {
	surface := &recordingSurface{}
	r := NewReporter(nil, surface)

	for i := 0; i < 5; i++ {
		r.Report(core.NoReaderFound())
	}

	assert.Equal(t, []string{core.StatusNoReaderFound}, surface.lines)
}
