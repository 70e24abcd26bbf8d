// Package transcript implements the session's append-only audit log: user and
// assistant turns, system notices, and the tool call/response pairs recorded
// by the transport interceptor. Entry order is the only ordering guarantee
// consumers rely on: index order equals happened-before order.
package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Kind classifies a transcript entry.
type Kind string

const (
	KindUser         Kind = "user"
	KindAssistant    Kind = "assistant"
	KindSystem       Kind = "system"
	KindToolCall     Kind = "tool_call"
	KindToolResponse Kind = "tool_response"
	KindError        Kind = "error"
)

// Entry is a single transcript record. Entries are never mutated after append.
type Entry struct {
	Kind Kind
	Text string
	Time time.Time
}

// Log holds an ordered sequence of entries. Safe for concurrent use; appends
// are serialized so export always reflects a single consistent snapshot.
type Log struct {
	entries []Entry
	mu      sync.RWMutex
}

// NewLog creates an empty transcript log.
func NewLog() *Log {
	return &Log{}
}

// Append adds an entry to the end of the log. The entry timestamp is set to
// the append time when zero.
func (l *Log) Append(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Clear atomically truncates the log to empty.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Entries returns a defensive copy of the log in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	copied := make([]Entry, len(l.entries))
	copy(copied, l.entries)
	return copied
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Export renders every entry as one kind-tagged line, taken from a single
// consistent snapshot of the log.
func (l *Log) Export() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = fmt.Sprintf("[%s] %s", strings.ToUpper(string(e.Kind)), compact(e.Text))
	}
	return lines
}

// compact collapses a multi-line text onto a single line.
func compact(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
