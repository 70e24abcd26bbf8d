package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/finna-data/mcpchat/observability"
)

type recordingObserver struct {
	events []observability.Event
}

func (r *recordingObserver) OnEvent(ctx context.Context, event observability.Event) {
	r.events = append(r.events, event)
}

func TestLevel_SlogMapping(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{observability.LevelVerbose, slog.LevelDebug},
		{observability.LevelInfo, slog.LevelInfo},
		{observability.LevelWarning, slog.LevelWarn},
		{observability.LevelError, slog.LevelError},
	}
	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestSlogObserver_EmitsEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	observer := observability.NewSlogObserver(logger)

	observer.OnEvent(context.Background(), observability.Event{
		Type:      "session.submit",
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "session",
		Data:      map[string]any{"turn_id": "t-1"},
	})

	out := buf.String()
	if !strings.Contains(out, "session.submit") {
		t.Errorf("log output %q missing event type", out)
	}
	if !strings.Contains(out, "turn_id=t-1") {
		t.Errorf("log output %q missing data attribute", out)
	}
	if !strings.Contains(out, "source=session") {
		t.Errorf("log output %q missing source attribute", out)
	}
}

func TestTee_FansOut(t *testing.T) {
	first := &recordingObserver{}
	second := &recordingObserver{}

	combined := observability.Tee(first, nil, second)
	combined.OnEvent(context.Background(), observability.Event{Type: "test.event"})

	if len(first.events) != 1 || len(second.events) != 1 {
		t.Errorf("fan-out delivered (%d, %d) events, want (1, 1)", len(first.events), len(second.events))
	}
}

func TestTee_SingleObserverPassesThrough(t *testing.T) {
	only := &recordingObserver{}

	if got := observability.Tee(nil, only); got != observability.Observer(only) {
		t.Errorf("Tee(nil, only) = %T, want the observer itself", got)
	}
}
