package logging

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase level name used in JSON output and the console.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText lets levels serialize as their names.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// Category groups log entries by subsystem.
type Category string

const (
	CatSystem    Category = "system"
	CatReader    Category = "reader"
	CatCard      Category = "card"
	CatLoop      Category = "loop"
	CatOutput    Category = "output"
	CatHTTP      Category = "http"
	CatWebSocket Category = "websocket"
)

// Entry is a single log record.
type Entry struct {
	Time     time.Time      `json:"time"`
	Level    Level          `json:"level"`
	Category Category       `json:"category"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

// Logger keeps the most recent entries in a fixed-size ring buffer.
type Logger struct {
	mu       sync.RWMutex
	entries  []Entry
	next     int
	full     bool
	minLevel Level
	console  bool
	counts   map[Level]int
}

// Stats summarizes what the logger has seen since the last Clear.
type Stats struct {
	Capacity int            `json:"capacity"`
	Stored   int            `json:"stored"`
	ByLevel  map[string]int `json:"byLevel"`
}

var (
	global   *Logger
	globalMu sync.Mutex
)

// New creates a logger holding up to size entries. Entries below minLevel are dropped.
func New(size int, minLevel Level) *Logger {
	if size <= 0 {
		size = 1000
	}
	return &Logger{
		entries:  make([]Entry, size),
		minLevel: minLevel,
		counts:   make(map[Level]int),
	}
}

// Init replaces the process-wide logger. Entries are also echoed to the standard log package.
func Init(size int, minLevel Level) {
	l := New(size, minLevel)
	l.console = true

	globalMu.Lock()
	global = l
	globalMu.Unlock()
}

// Get returns the process-wide logger, creating a default one if Init was never called.
func Get() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(1000, LevelInfo)
	}
	return global
}

// Log records an entry.
func (l *Logger) Log(level Level, cat Category, msg string, data map[string]any) {
	if level < l.minLevel {
		return
	}

	entry := Entry{
		Time:     time.Now(),
		Level:    level,
		Category: cat,
		Message:  msg,
		Data:     data,
	}

	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.counts[level]++
	console := l.console
	l.mu.Unlock()

	if console {
		log.Print(formatEntry(entry))
	}
}

// GetEntries returns up to limit of the newest entries, oldest first.
// minLevel and category are optional filters.
func (l *Logger) GetEntries(limit int, minLevel *Level, category *Category) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ordered := l.ordered()
	result := make([]Entry, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		e := ordered[i]
		if minLevel != nil && e.Level < *minLevel {
			continue
		}
		if category != nil && e.Category != *category {
			continue
		}
		result = append(result, e)
	}

	// Collected newest first; flip back to chronological order.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Stats returns capacity and per-level counters.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byLevel := make(map[string]int, len(l.counts))
	for lvl, n := range l.counts {
		byLevel[lvl.String()] = n
	}
	return Stats{
		Capacity: len(l.entries),
		Stored:   len(l.ordered()),
		ByLevel:  byLevel,
	}
}

// Clear drops all entries and counters.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]Entry, len(l.entries))
	l.next = 0
	l.full = false
	l.counts = make(map[Level]int)
}

// ordered returns stored entries oldest first. Caller holds the lock.
func (l *Logger) ordered() []Entry {
	if !l.full {
		return l.entries[:l.next]
	}
	out := make([]Entry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

func formatEntry(e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", strings.ToUpper(e.Level.String()), e.Category, e.Message)
	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
		}
	}
	return b.String()
}

// Debug logs at debug level on the process-wide logger.
func Debug(cat Category, msg string, data map[string]any) {
	Get().Log(LevelDebug, cat, msg, data)
}

// Info logs at info level on the process-wide logger.
func Info(cat Category, msg string, data map[string]any) {
	Get().Log(LevelInfo, cat, msg, data)
}

// Warn logs at warn level on the process-wide logger.
func Warn(cat Category, msg string, data map[string]any) {
	Get().Log(LevelWarn, cat, msg, data)
}

// Error logs at error level on the process-wide logger.
func Error(cat Category, msg string, data map[string]any) {
	Get().Log(LevelError, cat, msg, data)
}
