// Package history implements the navigable input history: a bounded FIFO of
// past user inputs persisted one line per entry, with shell-style cursor
// navigation for the front ends' up/down keys.
package history

import (
	"sync"

	"github.com/finna-data/mcpchat/storage"
)

// MaxEntries bounds the history; the oldest entries are evicted first.
const MaxEntries = 1000

// Log holds the in-memory history and mirrors appends to a backing file.
// The cursor is always within [0, len(entries)]; len(entries) is the
// past-end position that navigation returns to after every append.
type Log struct {
	path    string
	entries []string
	cursor  int
	mu      sync.Mutex

	// persistErr receives append persistence failures; nil drops them.
	// Persistence is best-effort and never affects the in-memory log.
	persistErr func(error)
}

// Load builds a Log from the file at path, keeping the most recent
// MaxEntries lines. A missing file yields an empty log. An unreadable file
// also yields an empty log: history is best-effort state.
func Load(path string) *Log {
	lines, err := storage.TailLines(path, MaxEntries)
	if err != nil {
		lines = nil
	}
	return &Log{
		path:    path,
		entries: lines,
		cursor:  len(lines),
	}
}

// OnPersistError registers a callback invoked when an append fails to reach
// the backing file.
func (l *Log) OnPersistError(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persistErr = fn
}

// Append pushes line to the end of the history, evicts beyond the bound,
// resets the cursor past-end, and persists the line immediately.
func (l *Log) Append(line string) {
	l.mu.Lock()
	l.entries = append(l.entries, line)
	if len(l.entries) > MaxEntries {
		l.entries = l.entries[len(l.entries)-MaxEntries:]
	}
	l.cursor = len(l.entries)
	path := l.path
	notify := l.persistErr
	l.mu.Unlock()

	if path == "" {
		return
	}
	if err := storage.AppendLine(path, line); err != nil && notify != nil {
		notify(err)
	}
}

// Navigate moves the cursor by delta (-1 toward older entries, +1 toward the
// blank past-end line), clamped to [0, len]. It returns the entry at the new
// cursor position, or "" when the cursor lands past-end.
func (l *Log) Navigate(delta int) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cursor += delta
	if l.cursor < 0 {
		l.cursor = 0
	}
	if l.cursor > len(l.entries) {
		l.cursor = len(l.entries)
	}

	if l.cursor == len(l.entries) {
		return ""
	}
	return l.entries[l.cursor]
}

// Len returns the number of entries in the history.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a defensive copy, most recent last.
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	copied := make([]string, len(l.entries))
	copy(copied, l.entries)
	return copied
}
