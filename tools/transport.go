// Package tools provides the remote tool transport: the Transport interface
// the agent capability consumes, an MCP streamable-HTTP client implementing
// it, and the interceptor that audits every invocation into the transcript.
package tools

import (
	"context"
	"encoding/json"
	"errors"
)

// Sentinel errors for the tool transport.
var (
	ErrNotConnected = errors.New("transport not connected")
	ErrToolFailed   = errors.New("tool execution failed")
)

// Definition describes a tool exposed by the remote server. InputSchema is
// the tool's JSON Schema argument description, passed through verbatim.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Transport reaches the remote tools through a single long-lived connection.
// The agent capability never calls a raw Transport directly; session setup
// wraps it once with the Interceptor.
type Transport interface {
	// List returns the tools the server exposes.
	List(ctx context.Context) ([]Definition, error)
	// Invoke calls a named tool and returns its decoded result.
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
	// Close tears down the connection.
	Close() error
}
