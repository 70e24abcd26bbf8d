package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/finna-data/mcpchat/agent"
	"github.com/finna-data/mcpchat/tools"
)

type scriptedTransport struct {
	mu      sync.Mutex
	invoked []string
	result  any
	err     error
}

func (s *scriptedTransport) List(ctx context.Context) ([]tools.Definition, error) {
	return []tools.Definition{{
		Name:        "search",
		Description: "Search records",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
	}}, nil
}

func (s *scriptedTransport) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.Lock()
	s.invoked = append(s.invoked, name)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *scriptedTransport) Close() error { return nil }

// chatRequest captures the fields of a completion request the tests assert on.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
}

func toolCallResponse(name, arguments string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
			"role": "assistant", "content": "",
			"tool_calls": [{"id": "call_1", "type": "function",
				"function": {"name": %q, "arguments": %q}}]
		}}]
	}`, name, arguments)
}

func textResponse(content string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-2", "object": "chat.completion", "model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {
			"role": "assistant", "content": %q
		}}]
	}`, content)
}

// newChatServer replays the scripted responses in order and records each
// request body.
func newChatServer(t *testing.T, responses ...string) (*httptest.Server, *[]chatRequest) {
	t.Helper()

	var requests []chatRequest
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding chat request: %v", err)
		}
		requests = append(requests, req)

		if calls >= len(responses) {
			t.Errorf("unexpected completion call %d", calls+1)
			http.Error(w, "no scripted response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, responses[calls])
		calls++
	}))
	return server, &requests
}

func newTestBackend(serverURL string, transport tools.Transport) *agent.Backend {
	cfg := agent.DefaultConfig()
	cfg.Model = "openai:gpt-4o-mini"
	cfg.APIKey = "test-key"
	cfg.BaseURL = serverURL
	cfg.SystemPrompt = "You are a data assistant."
	return agent.NewBackend(cfg, transport)
}

func TestBackend_DirectAnswer(t *testing.T) {
	server, requests := newChatServer(t, textResponse("the answer"))
	defer server.Close()

	backend := newTestBackend(server.URL, &scriptedTransport{})
	result := backend.Run(context.Background(), "question")

	if result.State != agent.StateOK {
		t.Fatalf("Run() state = %v, want StateOK (err=%v)", result.State, result.Err)
	}
	if result.Output != "the answer" {
		t.Errorf("Run() output = %q, want %q", result.Output, "the answer")
	}

	req := (*requests)[0]
	if req.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q, want provider prefix stripped", req.Model)
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", req.Messages[0].Role)
	}
}

func TestBackend_ToolLoop(t *testing.T) {
	server, requests := newChatServer(t,
		toolCallResponse("search", `{"q":"helsinki"}`),
		textResponse("found it"),
	)
	defer server.Close()

	transport := &scriptedTransport{result: "3 records"}
	backend := newTestBackend(server.URL, transport)

	result := backend.Run(context.Background(), "find helsinki records")
	if result.State != agent.StateOK {
		t.Fatalf("Run() state = %v, want StateOK (err=%v)", result.State, result.Err)
	}
	if result.Output != "found it" {
		t.Errorf("Run() output = %q, want %q", result.Output, "found it")
	}

	if len(transport.invoked) != 1 || transport.invoked[0] != "search" {
		t.Errorf("invoked tools = %v, want [search]", transport.invoked)
	}

	// The second request carries the tool result back to the model.
	second := (*requests)[1]
	var sawToolResult bool
	for _, msg := range second.Messages {
		if msg.Role == "tool" {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Error("second request has no tool-role message")
	}
}

func TestBackend_ToolFailureFeedsBack(t *testing.T) {
	server, requests := newChatServer(t,
		toolCallResponse("search", `{"q":"x"}`),
		textResponse("recovered"),
	)
	defer server.Close()

	transport := &scriptedTransport{
		err: fmt.Errorf("%w: search: no such index", tools.ErrToolFailed),
	}
	backend := newTestBackend(server.URL, transport)

	result := backend.Run(context.Background(), "question")
	if result.State != agent.StateOK {
		t.Fatalf("Run() state = %v, want StateOK (err=%v)", result.State, result.Err)
	}

	second := (*requests)[1]
	var errContent string
	for _, msg := range second.Messages {
		if msg.Role == "tool" {
			if text, ok := msg.Content.(string); ok {
				errContent = text
			}
		}
	}
	if !strings.HasPrefix(errContent, "error:") {
		t.Errorf("tool message content = %q, want error fed back to the model", errContent)
	}
}

func TestBackend_TransportFailureAbortsRun(t *testing.T) {
	server, _ := newChatServer(t, toolCallResponse("search", `{}`))
	defer server.Close()

	transport := &scriptedTransport{err: errors.New("connection reset")}
	backend := newTestBackend(server.URL, transport)

	result := backend.Run(context.Background(), "question")
	if result.State != agent.StateFailed {
		t.Fatalf("Run() state = %v, want StateFailed", result.State)
	}
	if result.Err == nil || !strings.Contains(result.Err.Error(), "connection reset") {
		t.Errorf("Run() err = %v, want transport failure", result.Err)
	}
}

func TestBackend_CancelledContext(t *testing.T) {
	server, _ := newChatServer(t)
	defer server.Close()

	backend := newTestBackend(server.URL, &scriptedTransport{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := backend.Run(ctx, "question")
	if result.State != agent.StateCancelled {
		t.Errorf("Run() state = %v, want StateCancelled", result.State)
	}
}

func TestBackend_MaxIterations(t *testing.T) {
	server, _ := newChatServer(t,
		toolCallResponse("search", `{}`),
		toolCallResponse("search", `{}`),
	)
	defer server.Close()

	cfg := agent.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL
	cfg.MaxIterations = 2

	backend := agent.NewBackend(cfg, &scriptedTransport{result: "data"})
	result := backend.Run(context.Background(), "question")

	if result.State != agent.StateFailed {
		t.Fatalf("Run() state = %v, want StateFailed", result.State)
	}
	if !errors.Is(result.Err, agent.ErrMaxIterations) {
		t.Errorf("Run() err = %v, want ErrMaxIterations", result.Err)
	}
}

func TestBackend_ResetDropsHistory(t *testing.T) {
	server, requests := newChatServer(t,
		textResponse("first answer"),
		textResponse("second answer"),
	)
	defer server.Close()

	backend := newTestBackend(server.URL, &scriptedTransport{})

	if result := backend.Run(context.Background(), "first"); result.State != agent.StateOK {
		t.Fatalf("first Run() state = %v", result.State)
	}
	backend.Reset()
	if result := backend.Run(context.Background(), "second"); result.State != agent.StateOK {
		t.Fatalf("second Run() state = %v", result.State)
	}

	second := (*requests)[1]
	userMessages := 0
	for _, msg := range second.Messages {
		if msg.Role == "user" {
			userMessages++
		}
	}
	if userMessages != 1 {
		t.Errorf("second request has %d user messages, want 1 after Reset", userMessages)
	}
}

func TestBackend_FailedRunLeavesNoHistory(t *testing.T) {
	server, requests := newChatServer(t,
		toolCallResponse("search", `{}`),
		textResponse("clean answer"),
	)
	defer server.Close()

	transport := &scriptedTransport{err: errors.New("connection reset")}
	backend := newTestBackend(server.URL, transport)

	if result := backend.Run(context.Background(), "doomed question"); result.State != agent.StateFailed {
		t.Fatalf("first Run() state = %v, want StateFailed", result.State)
	}

	transport.err = nil
	if result := backend.Run(context.Background(), "second question"); result.State != agent.StateOK {
		t.Fatalf("second Run() state = %v, want StateOK", result.State)
	}

	// The failed turn's user message and partial tool exchange must not
	// leak into the next run's context.
	second := (*requests)[1]
	for _, msg := range second.Messages {
		if msg.Role == "tool" {
			t.Errorf("second request carries a tool message from the failed turn")
		}
		if text, ok := msg.Content.(string); ok && text == "doomed question" {
			t.Errorf("second request carries the failed turn's question")
		}
	}
}

func TestBackend_CancelledRunLeavesNoHistory(t *testing.T) {
	server, requests := newChatServer(t, textResponse("answer"))
	defer server.Close()

	backend := newTestBackend(server.URL, &scriptedTransport{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if result := backend.Run(ctx, "cancelled question"); result.State != agent.StateCancelled {
		t.Fatalf("first Run() state = %v, want StateCancelled", result.State)
	}

	if result := backend.Run(context.Background(), "live question"); result.State != agent.StateOK {
		t.Fatalf("second Run() state = %v, want StateOK", result.State)
	}

	userMessages := 0
	for _, msg := range (*requests)[0].Messages {
		if msg.Role == "user" {
			userMessages++
		}
	}
	if userMessages != 1 {
		t.Errorf("request has %d user messages, want 1 (cancelled question rolled back)", userMessages)
	}
}

func TestBackend_SetModel(t *testing.T) {
	server, requests := newChatServer(t, textResponse("ok"))
	defer server.Close()

	backend := newTestBackend(server.URL, &scriptedTransport{})
	backend.SetModel("openai:gpt-4.1")

	if result := backend.Run(context.Background(), "question"); result.State != agent.StateOK {
		t.Fatalf("Run() state = %v", result.State)
	}

	if got := (*requests)[0].Model; got != "gpt-4.1" {
		t.Errorf("request model = %q, want %q", got, "gpt-4.1")
	}
}
