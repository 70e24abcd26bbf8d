package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	jsonRPCVersion  = "2.0"
	headerSessionID = "Mcp-Session-Id"
	acceptValue     = "application/json, text/event-stream"
	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"

	// maxSSELineSize caps individual SSE lines at 1MB.
	maxSSELineSize = 1 << 20
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// httpChannel posts JSON-RPC messages to an MCP streamable-HTTP endpoint and
// decodes responses from either an application/json body or the first
// matching text/event-stream event.
type httpChannel struct {
	url       string
	authToken string
	client    *http.Client

	nextID    atomic.Int64
	sessionID string
	mu        sync.RWMutex
}

func newHTTPChannel(url, authToken string) *httpChannel {
	return &httpChannel{
		url:       strings.TrimRight(url, "/"),
		authToken: authToken,
		client:    &http.Client{},
	}
}

// call sends a request and waits for its response.
func (c *httpChannel) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)

	req := rpcRequest{JSONRPC: jsonRPCVersion, ID: id, Method: method}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s params: %w", method, err)
		}
		req.Params = encoded
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", method, err)
	}

	httpResp, err := c.post(ctx, body, acceptValue)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp *rpcResponse
	if strings.HasPrefix(httpResp.Header.Get("Content-Type"), contentTypeSSE) {
		resp, err = readSSEResponse(httpResp.Body, id)
	} else {
		resp = &rpcResponse{}
		err = json.NewDecoder(httpResp.Body).Decode(resp)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, resp.Error)
	}
	return resp.Result, nil
}

// notify sends a notification; no response is expected.
func (c *httpChannel) notify(ctx context.Context, method string, params any) error {
	notif := rpcNotification{JSONRPC: jsonRPCVersion, Method: method}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling %s params: %w", method, err)
		}
		notif.Params = encoded
	}

	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshaling %s notification: %w", method, err)
	}

	resp, err := c.post(ctx, body, contentTypeJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *httpChannel) post(ctx context.Context, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", accept)
	c.setSessionHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP POST: %w", err)
	}

	if sid := resp.Header.Get(headerSessionID); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.url)
	}

	return resp, nil
}

func (c *httpChannel) setSessionHeaders(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	c.mu.RLock()
	sid := c.sessionID
	c.mu.RUnlock()
	if sid != "" {
		req.Header.Set(headerSessionID, sid)
	}
}

// close terminates the server-side session with a DELETE when one was
// established.
func (c *httpChannel) close() error {
	c.mu.RLock()
	sid := c.sessionID
	c.mu.RUnlock()
	if sid == "" {
		return nil
	}

	req, err := http.NewRequest(http.MethodDelete, c.url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set(headerSessionID, sid)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("DELETE session: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// readSSEResponse scans SSE events for the JSON-RPC response matching reqID.
// Events that are not the awaited response (server notifications, progress)
// are skipped.
func readSSEResponse(body io.Reader, reqID int64) (*rpcResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)

	var dataLines []string

	flush := func() (*rpcResponse, bool) {
		if len(dataLines) == 0 {
			return nil, false
		}
		data := strings.Join(dataLines, "\n")
		dataLines = dataLines[:0]

		var resp rpcResponse
		if err := json.Unmarshal([]byte(data), &resp); err == nil && resp.ID == reqID {
			return &resp, true
		}
		return nil, false
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if resp, done := flush(); done {
				return resp, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if value, found := strings.CutPrefix(line, "data:"); found {
			dataLines = append(dataLines, strings.TrimPrefix(value, " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading SSE stream: %w", err)
	}

	// Trailing event without a final blank line.
	if resp, done := flush(); done {
		return resp, nil
	}

	return nil, fmt.Errorf("SSE stream ended without response for ID %d", reqID)
}
