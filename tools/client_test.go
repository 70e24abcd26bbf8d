package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finna-data/mcpchat/tools"
)

type rpcEnvelope struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newMCPServer serves a minimal MCP streamable-HTTP endpoint with one tool.
// callResult renders the tools/call response body for the given request id.
func newMCPServer(t *testing.T, callResult func(id int64) string) (*httptest.Server, *[]string) {
	t.Helper()

	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusOK)
			return
		}

		var req rpcEnvelope
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		methods = append(methods, req.Method)

		switch req.Method {
		case "initialize":
			w.Header().Set("Mcp-Session-Id", "session-123")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"test","version":"1.0"}}}`, req.ID)
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		case "tools/list":
			if got := r.Header.Get("Mcp-Session-Id"); got != "session-123" {
				t.Errorf("Mcp-Session-Id = %q, want %q", got, "session-123")
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"tools":[{"name":"search","description":"Search records","inputSchema":{"type":"object"}}]}}`, req.ID)
		case "tools/call":
			fmt.Fprint(w, callResult(req.ID))
		default:
			t.Errorf("unexpected method %q", req.Method)
		}
	}))
	return server, &methods
}

func TestClient_ConnectHandshake(t *testing.T) {
	server, methods := newMCPServer(t, nil)
	defer server.Close()

	client := tools.NewClient(server.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	want := []string{"initialize", "notifications/initialized"}
	if len(*methods) != len(want) {
		t.Fatalf("server saw %d calls, want %d", len(*methods), len(want))
	}
	for i, m := range *methods {
		if m != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, m, want[i])
		}
	}
}

func TestClient_ListBeforeConnect(t *testing.T) {
	client := tools.NewClient("http://localhost:0")

	if _, err := client.List(context.Background()); !errors.Is(err, tools.ErrNotConnected) {
		t.Errorf("List() error = %v, want ErrNotConnected", err)
	}
	if _, err := client.Invoke(context.Background(), "search", nil); !errors.Is(err, tools.ErrNotConnected) {
		t.Errorf("Invoke() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_List(t *testing.T) {
	server, _ := newMCPServer(t, nil)
	defer server.Close()

	client := tools.NewClient(server.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	defs, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("List() returned %d tools, want 1", len(defs))
	}
	if defs[0].Name != "search" || defs[0].Description != "Search records" {
		t.Errorf("List()[0] = %+v, want search tool", defs[0])
	}
	if len(defs[0].InputSchema) == 0 {
		t.Error("List()[0].InputSchema is empty, want schema JSON")
	}
}

func TestClient_InvokeJSONResponse(t *testing.T) {
	server, _ := newMCPServer(t, func(id int64) string {
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"content":[{"type":"text","text":"found 3 records"}],"isError":false}}`, id)
	})
	defer server.Close()

	client := tools.NewClient(server.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	result, err := client.Invoke(context.Background(), "search", map[string]any{"q": "helsinki"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result != "found 3 records" {
		t.Errorf("Invoke() = %v, want %q", result, "found 3 records")
	}
}

func TestClient_InvokeSSEResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcEnvelope
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return
		}
		switch req.Method {
		case "initialize":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"protocolVersion":"2024-11-05","serverInfo":{"name":"t","version":"1"}}}`, req.ID)
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		case "tools/call":
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, ": keepalive\n\n")
			fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"streamed\"}],\"isError\":false}}\n\n", req.ID)
		}
	}))
	defer server.Close()

	client := tools.NewClient(server.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	result, err := client.Invoke(context.Background(), "search", nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result != "streamed" {
		t.Errorf("Invoke() = %v, want %q", result, "streamed")
	}
}

func TestClient_InvokeToolError(t *testing.T) {
	server, _ := newMCPServer(t, func(id int64) string {
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"content":[{"type":"text","text":"no such index"}],"isError":true}}`, id)
	})
	defer server.Close()

	client := tools.NewClient(server.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	_, err := client.Invoke(context.Background(), "search", nil)
	if !errors.Is(err, tools.ErrToolFailed) {
		t.Errorf("Invoke() error = %v, want ErrToolFailed", err)
	}
}

func TestClient_InvokeRPCError(t *testing.T) {
	server, _ := newMCPServer(t, func(id int64) string {
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32602,"message":"unknown tool"}}`, id)
	})
	defer server.Close()

	client := tools.NewClient(server.URL)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if _, err := client.Invoke(context.Background(), "bogus", nil); err == nil {
		t.Error("Invoke() error = nil, want JSON-RPC error surfaced")
	}
}
