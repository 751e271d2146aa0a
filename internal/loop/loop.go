// Package loop runs the endless read cycle: one complete reader access per
// iteration, a pause after every delivered UID, and an operator controlled
// start/stop flag.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/SimplyPrint/nfc-wedge/internal/core"
	"github.com/SimplyPrint/nfc-wedge/internal/logging"
	"github.com/SimplyPrint/nfc-wedge/internal/status"
	"go.uber.org/atomic"
)

const (
	DefaultDebounce  = 2 * time.Second
	DefaultPausePoll = 50 * time.Millisecond

	restartDelay = time.Second
)

// Options configures a Loop. Zero values fall back to the defaults.
type Options struct {
	Debounce  time.Duration
	PausePoll time.Duration

	// Read performs one read attempt. Defaults to core.ReadOnce with the PC/SC factory.
	Read func() core.Outcome
	// Sleep blocks for the given duration. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Loop polls the reader and reports outcomes.
type Loop struct {
	reporter  *status.Reporter
	state     *RunState
	toggleMu  sync.Mutex // orders flips with their announcements
	read      func() core.Outcome
	sleep     func(time.Duration)
	debounce  time.Duration
	pausePoll time.Duration

	reads    *atomic.Uint64
	uids     *atomic.Uint64
	restarts *atomic.Uint64
	lastUID  *atomic.String
}

// New creates a loop reporting through reporter. The loop starts active.
func New(reporter *status.Reporter, opts Options) *Loop {
	l := &Loop{
		reporter:  reporter,
		state:     NewRunState(),
		read:      opts.Read,
		sleep:     opts.Sleep,
		debounce:  opts.Debounce,
		pausePoll: opts.PausePoll,
		reads:     atomic.NewUint64(0),
		uids:      atomic.NewUint64(0),
		restarts:  atomic.NewUint64(0),
		lastUID:   atomic.NewString(""),
	}
	if l.read == nil {
		factory := core.DefaultContextFactory{}
		l.read = func() core.Outcome { return core.ReadOnce(factory) }
	}
	if l.sleep == nil {
		l.sleep = time.Sleep
	}
	if l.debounce == 0 {
		l.debounce = DefaultDebounce
	}
	if l.pausePoll <= 0 {
		l.pausePoll = DefaultPausePoll
	}
	return l
}

// Active reports whether the loop is reading.
func (l *Loop) Active() bool {
	return l.state.Active()
}

// Toggle flips between reading and paused and reports the change.
// A read or debounce pause in progress is not interrupted; the next
// iteration observes the new state.
func (l *Loop) Toggle() bool {
	l.toggleMu.Lock()
	defer l.toggleMu.Unlock()

	active := l.state.Toggle()
	l.announce(active)
	return active
}

// SetActive sets the state explicitly. Returns true when it changed.
func (l *Loop) SetActive(active bool) bool {
	l.toggleMu.Lock()
	defer l.toggleMu.Unlock()

	if l.state.Set(active) == active {
		return false
	}
	l.announce(active)
	return true
}

func (l *Loop) announce(active bool) {
	text := status.ReaderOff
	if active {
		text = status.ReaderOn
	}
	l.reporter.ReportText(text)
	logging.Info(logging.CatLoop, "Read loop toggled", map[string]any{
		"active": active,
	})
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Active   bool   `json:"active"`
	Reads    uint64 `json:"reads"`
	UIDs     uint64 `json:"uids"`
	Restarts uint64 `json:"restarts"`
	LastUID  string `json:"lastUid,omitempty"`
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Active:   l.state.Active(),
		Reads:    l.reads.Load(),
		UIDs:     l.uids.Load(),
		Restarts: l.restarts.Load(),
		LastUID:  l.lastUID.Load(),
	}
}

// Run loops until ctx is cancelled. Cancellation is checked between
// iterations only. A panic inside an iteration is logged to a crash file and
// the loop resumes after a short delay.
func (l *Loop) Run(ctx context.Context) error {
	logging.Info(logging.CatLoop, "Read loop started", map[string]any{
		"debounce": l.debounce.String(),
	})
	for {
		if err := l.runGuarded(ctx); err != nil {
			logging.Info(logging.CatLoop, "Read loop stopped", nil)
			return err
		}
		l.restarts.Inc()
		l.sleep(restartDelay)
	}
}

// runGuarded returns ctx's error on cancellation and nil after a recovered panic.
func (l *Loop) runGuarded(ctx context.Context) (err error) {
	defer logging.RecoverAndLogFunc("read loop", false, func(_ interface{}, crashFile string) {
		logging.Error(logging.CatLoop, "Read loop crashed, restarting", map[string]any{
			"crashLog": crashFile,
		})
		err = nil
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Step()
	}
}

// Step runs a single iteration.
func (l *Loop) Step() {
	if !l.state.Active() {
		l.sleep(l.pausePoll)
		return
	}

	outcome := l.read()
	l.reads.Inc()
	l.reporter.Report(outcome)

	if outcome.Kind == core.KindUID {
		l.uids.Inc()
		l.lastUID.Store(outcome.UID)
		// Blocking on purpose: a card left on the reader is not re-read
		// until the pause ends, regardless of toggles.
		l.sleep(l.debounce)
	}
}
