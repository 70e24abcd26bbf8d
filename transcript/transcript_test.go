package transcript_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/finna-data/mcpchat/transcript"
)

func TestLog_AppendOrder(t *testing.T) {
	log := transcript.NewLog()
	log.Append(transcript.User("question"))
	log.Append(transcript.ToolCall("search", map[string]any{"q": "helsinki"}))
	log.Append(transcript.ToolResponse("search", "result"))
	log.Append(transcript.Assistant("answer"))

	entries := log.Entries()
	want := []transcript.Kind{
		transcript.KindUser,
		transcript.KindToolCall,
		transcript.KindToolResponse,
		transcript.KindAssistant,
	}
	if len(entries) != len(want) {
		t.Fatalf("Entries() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Kind != want[i] {
			t.Errorf("Entries()[%d].Kind = %q, want %q", i, e.Kind, want[i])
		}
	}
}

func TestLog_ExportMatchesAppendOrder(t *testing.T) {
	log := transcript.NewLog()
	for i := 0; i < 10; i++ {
		log.Append(transcript.User(fmt.Sprintf("entry %d", i)))
	}

	lines := log.Export()
	if len(lines) != 10 {
		t.Fatalf("Export() returned %d lines, want 10", len(lines))
	}
	for i, line := range lines {
		want := fmt.Sprintf("[USER] entry %d", i)
		if line != want {
			t.Errorf("Export()[%d] = %q, want %q", i, line, want)
		}
	}
}

func TestLog_ExportFlattensMultilineText(t *testing.T) {
	log := transcript.NewLog()
	log.Append(transcript.System("line one\nline two"))

	lines := log.Export()
	if got, want := lines[0], "[SYSTEM] line one line two"; got != want {
		t.Errorf("Export()[0] = %q, want %q", got, want)
	}
}

func TestLog_Clear(t *testing.T) {
	log := transcript.NewLog()
	log.Append(transcript.User("a"))
	log.Append(transcript.Assistant("b"))

	log.Clear()

	if got := log.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
}

func TestLog_EntriesIsDefensiveCopy(t *testing.T) {
	log := transcript.NewLog()
	log.Append(transcript.User("original"))

	entries := log.Entries()
	entries[0].Text = "mutated"

	if got := log.Entries()[0].Text; got != "original" {
		t.Errorf("entry text = %q, want %q", got, "original")
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	log := transcript.NewLog()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				log.Append(transcript.System("entry"))
			}
		}()
	}
	wg.Wait()

	if got := log.Len(); got != 400 {
		t.Errorf("Len() = %d, want 400", got)
	}
}

func TestToolCall_SerializesArguments(t *testing.T) {
	e := transcript.ToolCall("search", map[string]any{"q": "x"})

	if e.Kind != transcript.KindToolCall {
		t.Errorf("Kind = %q, want %q", e.Kind, transcript.KindToolCall)
	}
	if !strings.Contains(e.Text, `"name":"search"`) {
		t.Errorf("Text = %q, missing tool name", e.Text)
	}
	if !strings.Contains(e.Text, `"q":"x"`) {
		t.Errorf("Text = %q, missing arguments", e.Text)
	}
}

func TestToolResponse_RecordsSerializedSize(t *testing.T) {
	e := transcript.ToolResponse("search", "abc")

	// "abc" serializes to `"abc"`, 5 bytes.
	if got, want := e.Text, "search: 5 bytes"; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
}

func TestError_CausalChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("tool invocation failed: %w", cause)

	e := transcript.Error(err)

	want := "tool invocation failed: connection refused (cause: connection refused)"
	if e.Text != want {
		t.Errorf("Text = %q, want %q", e.Text, want)
	}
}

func TestCausalChain_NoCause(t *testing.T) {
	if got := transcript.CausalChain(errors.New("plain")); got != "plain" {
		t.Errorf("CausalChain() = %q, want %q", got, "plain")
	}
}

func TestCausalChain_Nil(t *testing.T) {
	if got := transcript.CausalChain(nil); got != "" {
		t.Errorf("CausalChain(nil) = %q, want empty", got)
	}
}
