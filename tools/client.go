package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/finna-data/mcpchat/observability"
)

const protocolVersion = "2024-11-05"

// EventConnected is emitted after a successful initialize handshake.
const EventConnected observability.EventType = "tools.connected"

// Client talks to an MCP server over streamable HTTP. It performs the
// initialize handshake on Connect and exposes tool listing and invocation.
type Client struct {
	channel  *httpChannel
	observer observability.Observer

	mu         sync.RWMutex
	connected  bool
	serverInfo serverInfo
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientObserver sets the observer for connection events.
func WithClientObserver(obs observability.Observer) ClientOption {
	return func(c *Client) {
		if obs != nil {
			c.observer = obs
		}
	}
}

// WithAuthToken sets a bearer token sent on every request.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.channel.authToken = token
	}
}

// NewClient creates a client for the MCP endpoint at url. Connect must be
// called before List or Invoke.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		channel:  newHTTPChannel(url, ""),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      serverInfo `json:"serverInfo"`
}

// Connect performs the MCP initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "mcpchat", Version: "0.1.0"},
	}

	raw, err := c.channel.call(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize handshake: %w", err)
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decoding initialize result: %w", err)
	}

	if err := c.channel.notify(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	c.observer.OnEvent(ctx, observability.Event{
		Type:      EventConnected,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "tools.client",
		Data: map[string]any{
			"server_name":    result.ServerInfo.Name,
			"server_version": result.ServerInfo.Version,
		},
	})

	return nil
}

func (c *Client) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

type listToolsResult struct {
	Tools []Definition `json:"tools"`
}

// List returns the server's tool definitions.
func (c *Client) List(ctx context.Context) ([]Definition, error) {
	if !c.isConnected() {
		return nil, ErrNotConnected
	}

	raw, err := c.channel.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding tool list: %w", err)
	}
	return result.Tools, nil
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type callToolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Invoke calls a named tool. The result is the concatenated text content of
// the tool's response blocks.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if !c.isConnected() {
		return nil, ErrNotConnected
	}
	if args == nil {
		args = map[string]any{}
	}

	raw, err := c.channel.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("calling tool %q: %w", name, err)
	}

	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding tool %q result: %w", name, err)
	}

	text := joinContent(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("%w: %s: %s", ErrToolFailed, name, text)
	}
	return text, nil
}

func joinContent(blocks []contentBlock) string {
	var out string
	for _, block := range blocks {
		if block.Type != "text" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += block.Text
	}
	return out
}

// Close terminates the server session.
func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return c.channel.close()
}
