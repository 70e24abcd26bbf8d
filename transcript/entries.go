package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
)

// User builds a user turn entry.
func User(text string) Entry {
	return Entry{Kind: KindUser, Text: text}
}

// Assistant builds an assistant turn entry.
func Assistant(text string) Entry {
	return Entry{Kind: KindAssistant, Text: text}
}

// System builds a system notice entry.
func System(text string) Entry {
	return Entry{Kind: KindSystem, Text: text}
}

// ToolCall builds the entry recorded before a tool invocation is delegated
// to the transport: the tool name plus its serialized arguments.
func ToolCall(name string, args map[string]any) Entry {
	payload, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"name":%q}`, name))
	}
	return Entry{Kind: KindToolCall, Text: string(payload)}
}

// ToolResponse builds the entry recorded after a tool invocation succeeds.
// It carries the serialized result size so operators can spot oversized
// payloads without the transcript holding the payload itself.
func ToolResponse(name string, result any) Entry {
	size := 0
	if payload, err := json.Marshal(result); err == nil {
		size = len(payload)
	}
	return Entry{Kind: KindToolResponse, Text: fmt.Sprintf("%s: %d bytes", name, size)}
}

// Error builds an error entry carrying the causal chain: the error's own
// description followed by its proximate cause when one exists.
func Error(err error) Entry {
	return Entry{Kind: KindError, Text: CausalChain(err)}
}

// CausalChain renders err and its proximate cause on a single line.
func CausalChain(err error) string {
	if err == nil {
		return ""
	}

	text := err.Error()
	if cause := errors.Unwrap(err); cause != nil && cause.Error() != text {
		text = fmt.Sprintf("%s (cause: %s)", text, cause.Error())
	}
	return text
}
