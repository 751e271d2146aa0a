package status

import (
	"sync"
	"time"
)

// Line is one accepted status line.
type Line struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log is the in-memory operator log. It keeps the newest lines up to its
// capacity and fans new lines out to subscribers.
type Log struct {
	mu    sync.RWMutex
	lines []Line
	max   int
	subs  map[chan Line]struct{}
	now   func() time.Time
}

// NewLog creates a log holding up to max lines.
func NewLog(max int) *Log {
	if max <= 0 {
		max = 500
	}
	return &Log{
		max:  max,
		subs: make(map[chan Line]struct{}),
		now:  time.Now,
	}
}

// Append implements Surface.
func (l *Log) Append(text string) {
	line := Line{Time: l.now(), Text: text}

	l.mu.Lock()
	l.lines = append(l.lines, line)
	if len(l.lines) > l.max {
		l.lines = append(l.lines[:0:0], l.lines[len(l.lines)-l.max:]...)
	}
	for ch := range l.subs {
		select {
		case ch <- line:
		default:
			// Slow subscriber, drop rather than stall the read loop.
		}
	}
	l.mu.Unlock()
}

// Lines returns up to limit of the newest lines, oldest first. limit <= 0 returns all.
func (l *Log) Lines(limit int) []Line {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := 0
	if limit > 0 && len(l.lines) > limit {
		start = len(l.lines) - limit
	}
	out := make([]Line, len(l.lines)-start)
	copy(out, l.lines[start:])
	return out
}

// Text returns the log as newline separated text, the way the operator sees it.
func (l *Log) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, line := range l.lines {
		n += len(line.Text) + 1
	}
	b := make([]byte, 0, n)
	for _, line := range l.lines {
		b = append(b, line.Text...)
		b = append(b, '\n')
	}
	return string(b)
}

// Subscribe returns a channel receiving every line appended from now on and
// a function that unsubscribes and closes it.
func (l *Log) Subscribe() (<-chan Line, func()) {
	ch := make(chan Line, 16)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, ch)
			l.mu.Unlock()
			close(ch)
		})
	}
}
