package logger

import (
	"sync"
)

// Entry is a single captured log record.
type Entry struct {
	Level   string
	Message string
	Fields  []Field
}

// TestLogger captures log entries in memory so tests can assert on them.
type TestLogger struct {
	mu      sync.Mutex
	name    string
	entries []Entry
}

// NewTestLogger creates a logger that records entries instead of writing them.
func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

func (t *TestLogger) record(level, msg string, fields []Field) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, Entry{Level: level, Message: msg, Fields: fields})
}

func (t *TestLogger) Debug(msg string, fields ...Field) { t.record("debug", msg, fields) }
func (t *TestLogger) Info(msg string, fields ...Field)  { t.record("info", msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...Field)  { t.record("warn", msg, fields) }
func (t *TestLogger) Error(msg string, fields ...Field) { t.record("error", msg, fields) }

func (t *TestLogger) With(fields ...Field) Logger { return t }

func (t *TestLogger) Named(name string) Logger {
	t.name = name

	return t
}

func (t *TestLogger) Sync() error { return nil }

// Entries returns a snapshot of the captured entries.
func (t *TestLogger) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)

	return out
}

// Messages returns the captured messages in order.
func (t *TestLogger) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := make([]string, len(t.entries))
	for i, e := range t.entries {
		msgs[i] = e.Message
	}

	return msgs
}
