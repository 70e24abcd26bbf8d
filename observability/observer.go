// Package observability provides event-based observability for the session
// core. Subsystems emit typed events through an Observer instead of logging
// directly, so front ends choose where diagnostics go (a log file, stderr,
// or nowhere) without the core knowing.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level represents event severity.
type Level int

const (
	LevelVerbose Level = 5  // maps to slog.LevelDebug
	LevelInfo    Level = 9  // maps to slog.LevelInfo
	LevelWarning Level = 13 // maps to slog.LevelWarn
	LevelError   Level = 17 // maps to slog.LevelError
)

// String returns the severity text for the level.
func (l Level) String() string {
	switch {
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	default:
		return "ERROR"
	}
}

// SlogLevel maps this level to the corresponding slog.Level for log emission.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event. Each subsystem defines its own
// constants using this type (e.g., "session.submit", "catalog.fetch").
type EventType string

// Event is an observability event emitted by a subsystem.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events from subsystems for logging or metrics.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
