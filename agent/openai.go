package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/finna-data/mcpchat/core/protocol"
	"github.com/finna-data/mcpchat/observability"
	"github.com/finna-data/mcpchat/tools"
)

// DefaultMaxIterations bounds the tool loop when config leaves it unset.
const DefaultMaxIterations = 10

// Config holds the OpenAI-compatible backend settings.
type Config struct {
	Model         string `json:"model"`
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url"`
	SystemPrompt  string `json:"system_prompt"`
	MaxIterations int    `json:"max_iterations"`
}

// DefaultConfig returns the backend defaults.
func DefaultConfig() Config {
	return Config{
		Model:         "openai:gpt-4o-mini",
		MaxIterations: DefaultMaxIterations,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
	if source.MaxIterations > 0 {
		c.MaxIterations = source.MaxIterations
	}
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithObserver sets the observer for run events.
func WithObserver(obs observability.Observer) BackendOption {
	return func(b *Backend) {
		if obs != nil {
			b.observer = obs
		}
	}
}

// Backend runs the question/tool loop against an OpenAI-compatible chat
// completions API. Tool calls requested by the model are dispatched through
// the configured Transport. Conversation history persists across runs until
// Reset.
type Backend struct {
	client        openai.Client
	transport     tools.Transport
	observer      observability.Observer
	systemPrompt  string
	maxIterations int

	mu       sync.Mutex
	model    string
	messages []protocol.Message
}

// NewBackend creates a backend from config. The transport is the tool
// dispatch surface; it is typically an interceptor-wrapped MCP client.
func NewBackend(cfg Config, transport tools.Transport, opts ...BackendOption) *Backend {
	clientOpts := []option.RequestOption{}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	b := &Backend{
		client:        openai.NewClient(clientOpts...),
		transport:     transport,
		observer:      observability.NoOpObserver{},
		systemPrompt:  cfg.SystemPrompt,
		maxIterations: maxIterations,
		model:         cfg.Model,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetModel switches the model for subsequent runs. The history is kept.
func (b *Backend) SetModel(modelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = modelID
}

// Reset drops the conversation history.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

// Run executes the question through the completion/tool loop and returns a
// tagged result. Cancellation through ctx yields a cancelled result, not a
// failure. History is committed only for successful runs: a cancelled or
// failed turn is rolled back so the next run starts from the last answered
// exchange.
func (b *Backend) Run(ctx context.Context, question string) Result {
	b.mu.Lock()
	checkpoint := len(b.messages)
	b.messages = append(b.messages, protocol.NewMessage(protocol.RoleUser, question))
	model := b.model
	b.mu.Unlock()

	defs, err := b.transport.List(ctx)
	if err != nil {
		b.rollback(checkpoint)
		if ctx.Err() != nil {
			return Cancelled()
		}
		return Failed(fmt.Errorf("listing tools: %w", err))
	}

	toolParams, err := toToolParams(defs)
	if err != nil {
		b.rollback(checkpoint)
		return Failed(err)
	}

	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventRunStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "agent.Run",
		Data: map[string]any{
			"model":           model,
			"question_length": len(question),
			"tools":           len(defs),
		},
	})

	for iteration := 0; iteration < b.maxIterations; iteration++ {
		if ctx.Err() != nil {
			b.rollback(checkpoint)
			return Cancelled()
		}

		params := openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(apiModel(model)),
			Messages: b.buildMessages(),
		}
		if len(toolParams) > 0 {
			params.Tools = toolParams
		}

		resp, err := b.client.Chat.Completions.New(ctx, params)
		if err != nil {
			b.rollback(checkpoint)
			if ctx.Err() != nil {
				return Cancelled()
			}
			return Failed(fmt.Errorf("completion request: %w", err))
		}
		if len(resp.Choices) == 0 {
			b.rollback(checkpoint)
			return Failed(ErrEmptyResponse)
		}

		choice := resp.Choices[0]

		if len(choice.Message.ToolCalls) == 0 {
			b.appendMessage(protocol.Message{
				Role:    protocol.RoleAssistant,
				Content: choice.Message.Content,
			})

			b.observer.OnEvent(ctx, observability.Event{
				Type:      EventRunComplete,
				Level:     observability.LevelInfo,
				Timestamp: time.Now(),
				Source:    "agent.Run",
				Data: map[string]any{
					"iterations":      iteration + 1,
					"response_length": len(choice.Message.Content),
				},
			})

			return OK(choice.Message.Content)
		}

		calls := make([]protocol.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			calls = append(calls, protocol.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		b.appendMessage(protocol.Message{
			Role:      protocol.RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: calls,
		})

		for _, call := range calls {
			if result := b.dispatch(ctx, call); result != nil {
				b.rollback(checkpoint)
				return *result
			}
		}
	}

	b.rollback(checkpoint)
	return Failed(ErrMaxIterations)
}

// rollback truncates the history to the given checkpoint, discarding the
// turn's uncommitted messages. A concurrent Reset may already have shrunk
// the history below the checkpoint; that is left alone.
func (b *Backend) rollback(checkpoint int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) > checkpoint {
		b.messages = b.messages[:checkpoint]
	}
}

// dispatch invokes one tool call and records the result in the history.
// It returns a non-nil Result only when the run must stop.
func (b *Backend) dispatch(ctx context.Context, call protocol.ToolCall) *Result {
	b.observer.OnEvent(ctx, observability.Event{
		Type:      EventToolCall,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "agent.Run",
		Data:      map[string]any{"name": call.Name},
	})

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			b.appendMessage(protocol.Message{
				Role:       protocol.RoleTool,
				Content:    fmt.Sprintf("error: invalid arguments: %s", err),
				ToolCallID: call.ID,
			})
			return nil
		}
	}

	output, err := b.transport.Invoke(ctx, call.Name, args)
	if err != nil {
		if ctx.Err() != nil {
			cancelled := Cancelled()
			return &cancelled
		}
		// Tool-reported failures go back to the model; anything else is a
		// transport failure that ends the run.
		if !errors.Is(err, tools.ErrToolFailed) {
			failed := Failed(fmt.Errorf("invoking %s: %w", call.Name, err))
			return &failed
		}
		b.appendMessage(protocol.Message{
			Role:       protocol.RoleTool,
			Content:    fmt.Sprintf("error: %s", err),
			ToolCallID: call.ID,
		})
		return nil
	}

	b.appendMessage(protocol.Message{
		Role:       protocol.RoleTool,
		Content:    fmt.Sprint(output),
		ToolCallID: call.ID,
	})
	return nil
}

func (b *Backend) appendMessage(msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

// buildMessages converts the history to API message params, prefixed with
// the system prompt when one is configured.
func (b *Backend) buildMessages() []openai.ChatCompletionMessageParamUnion {
	b.mu.Lock()
	history := make([]protocol.Message, len(b.messages))
	copy(history, b.messages)
	b.mu.Unlock()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if b.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(b.systemPrompt))
	}

	for _, msg := range history {
		switch msg.Role {
		case protocol.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case protocol.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			assistant := openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   msg.Content,
				ToolCalls: toolCalls,
			}
			messages = append(messages, assistant.ToParam())
		case protocol.RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return messages
}

func toToolParams(defs []tools.Definition) ([]openai.ChatCompletionToolParam, error) {
	params := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		schema := map[string]any{}
		if len(def.InputSchema) > 0 {
			if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
				return nil, fmt.Errorf("tool %s schema: %w", def.Name, err)
			}
		}
		params = append(params, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return params, nil
}

// apiModel strips a provider qualifier ("openai:gpt-4o-mini") down to the
// bare model id the API expects.
func apiModel(model string) string {
	if idx := strings.Index(model, ":"); idx > 0 {
		return model[idx+1:]
	}
	return model
}
