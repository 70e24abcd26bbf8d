// Package session implements the interactive session orchestrator: the
// single entry point for user input. It owns the current model, enforces the
// single-in-flight-request rule, dispatches slash commands, and translates
// agent outcomes into transcript entries.
//
//	s, err := session.New(cfg)
//	disp, turn := s.Submit("what records mention Helsinki?")
//	if disp == session.DispositionAsk {
//		<-turn.Done()
//	}
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finna-data/mcpchat/agent"
	"github.com/finna-data/mcpchat/catalog"
	"github.com/finna-data/mcpchat/history"
	"github.com/finna-data/mcpchat/observability"
	"github.com/finna-data/mcpchat/prefs"
	"github.com/finna-data/mcpchat/tools"
	"github.com/finna-data/mcpchat/transcript"
)

// Disposition reports how Submit handled an input line.
type Disposition int

const (
	// DispositionNone means the input was blank or a command that completed
	// locally; nothing is running.
	DispositionNone Disposition = iota
	// DispositionAsk means a question was accepted and a Turn is running.
	DispositionAsk
	// DispositionBusy means a question was rejected because a request is
	// already in flight. Rejected questions are not queued.
	DispositionBusy
	// DispositionExit means the user asked to end the session.
	DispositionExit
)

// Turn is the handle for one in-flight agent request. The result is valid
// once Done is closed.
type Turn struct {
	ID     string
	cancel context.CancelFunc
	done   chan struct{}
	result agent.Result
}

// Done is closed when the turn has resolved and its transcript entries have
// been appended.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the turn resolves and returns its outcome.
func (t *Turn) Result() agent.Result {
	<-t.done
	return t.result
}

// Option overrides a subsystem after config-driven initialization.
type Option func(*Session)

// WithAgent overrides the config-created agent backend.
func WithAgent(a agent.Agent) Option {
	return func(s *Session) { s.agent = a }
}

// WithCatalog overrides the config-created catalog manager.
func WithCatalog(m *catalog.Manager) Option {
	return func(s *Session) { s.catalog = m }
}

// WithObserver sets the observer for session events.
func WithObserver(obs observability.Observer) Option {
	return func(s *Session) {
		if obs != nil {
			s.observer = obs
		}
	}
}

// WithHistory overrides the config-created history log.
func WithHistory(h *history.Log) Option {
	return func(s *Session) { s.history = h }
}

// WithPrefs overrides the config-created preference store.
func WithPrefs(p *prefs.Store) Option {
	return func(s *Session) { s.prefs = p }
}

// Session owns the per-session mutable state. All methods are safe for
// concurrent use; the transcript has exactly two writer paths, the
// orchestrator and the tool interceptor it installs.
type Session struct {
	ID string

	cfg        Config
	transcript *transcript.Log
	history    *history.Log
	prefs      *prefs.Store
	catalog    *catalog.Manager
	agent      agent.Agent
	client     *tools.Client
	observer   observability.Observer

	mu          sync.Mutex
	model       string
	inflight    *Turn
	lastListing []catalog.Descriptor
	lastLimit   int
}

// New creates a session from configuration. Subsystems are initialized from
// config; functional options applied afterward can override any of them for
// testing. The saved model preference, when present, seeds the current model
// verbatim before any catalog load.
func New(cfg Config, opts ...Option) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to create session id: %w", err)
	}

	s := &Session{
		ID:         id.String(),
		cfg:        cfg,
		transcript: transcript.NewLog(),
		observer:   observability.NoOpObserver{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.history == nil {
		s.history = history.Load(cfg.HistoryPath)
	}
	if s.prefs == nil {
		s.prefs = prefs.NewStore(cfg.PrefsPath)
	}
	if s.catalog == nil {
		s.catalog = catalog.NewManager(
			catalog.NewHTTPFetcher(cfg.CatalogURL, cfg.Agent.APIKey),
			catalog.NewCache(cfg.CatalogCachePath),
		)
	}

	s.model = cfg.Agent.Model
	if saved, ok := s.prefs.Load(); ok {
		s.model = saved
	}

	if s.agent == nil {
		clientOpts := []tools.ClientOption{tools.WithClientObserver(s.observer)}
		if cfg.MCPAuthToken != "" {
			clientOpts = append(clientOpts, tools.WithAuthToken(cfg.MCPAuthToken))
		}
		s.client = tools.NewClient(cfg.MCPURL, clientOpts...)

		agentCfg := cfg.Agent
		agentCfg.Model = s.model
		s.agent = agent.NewBackend(
			agentCfg,
			tools.NewInterceptor(s.client, s.transcript),
			agent.WithObserver(s.observer),
		)
	} else {
		s.agent.SetModel(s.model)
	}

	s.history.OnPersistError(func(err error) {
		s.emit(EventPersistError, observability.LevelWarning, map[string]any{
			"store": "history",
			"error": err.Error(),
		})
	})

	return s, nil
}

// Connect establishes the tool transport connection. It is a no-op when the
// agent was injected without a transport.
func (s *Session) Connect(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Connect(ctx)
}

// Close cancels any in-flight turn and shuts down the tool transport.
func (s *Session) Close() error {
	s.Cancel()
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Transcript returns the session's transcript log.
func (s *Session) Transcript() *transcript.Log {
	return s.transcript
}

// History returns the session's input history log.
func (s *Session) History() *history.Log {
	return s.history
}

// Catalog returns the session's model catalog manager.
func (s *Session) Catalog() *catalog.Manager {
	return s.catalog
}

// Model returns the current model identifier.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Submit handles one line of user input. Blank input is a no-op. Recognized
// slash commands execute locally. Everything else is a question: it is
// appended to the history log, then either rejected as Busy (when a request
// is in flight) or run against the agent in the background. The returned
// Turn is non-nil exactly when the disposition is DispositionAsk.
func (s *Session) Submit(input string) (Disposition, *Turn) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return DispositionNone, nil
	}

	if strings.HasPrefix(trimmed, "/") {
		if disp, handled := s.dispatch(trimmed); handled {
			return disp, nil
		}
		// Unrecognized leading-slash input falls through as a question.
	}

	return s.ask(trimmed)
}

func (s *Session) ask(question string) (Disposition, *Turn) {
	s.history.Append(question)

	s.mu.Lock()
	if s.inflight != nil {
		s.mu.Unlock()
		s.transcript.Append(transcript.System("busy: a request is already in flight"))
		s.emit(EventBusy, observability.LevelWarning, map[string]any{
			"question_length": len(question),
		})
		return DispositionBusy, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.mu.Unlock()
		s.transcript.Append(transcript.Error(fmt.Errorf("failed to create request id: %w", err)))
		return DispositionNone, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	turn := &Turn{
		ID:     id.String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.inflight = turn
	s.transcript.Append(transcript.User(question))
	s.mu.Unlock()

	s.emit(EventSubmit, observability.LevelInfo, map[string]any{
		"turn_id":         turn.ID,
		"question_length": len(question),
	})

	go s.run(ctx, turn, question)

	return DispositionAsk, turn
}

// run executes one turn on its own goroutine and resolves the handle.
func (s *Session) run(ctx context.Context, turn *Turn, question string) {
	defer turn.cancel()

	result := s.agent.Run(ctx, question)

	switch result.State {
	case agent.StateOK:
		s.transcript.Append(transcript.Assistant(result.Output))
	case agent.StateCancelled:
		s.transcript.Append(transcript.System("request cancelled"))
	case agent.StateFailed:
		s.transcript.Append(transcript.Error(result.Err))
	}

	s.mu.Lock()
	if s.inflight == turn {
		s.inflight = nil
	}
	s.mu.Unlock()

	turn.result = result
	close(turn.done)

	s.emit(EventTurnComplete, observability.LevelInfo, map[string]any{
		"turn_id": turn.ID,
		"state":   result.State.String(),
	})
}

// Cancel signals cooperative cancellation to the in-flight turn. It is a
// no-op when nothing is running and never blocks on the turn unwinding.
func (s *Session) Cancel() {
	s.mu.Lock()
	turn := s.inflight
	s.mu.Unlock()

	if turn == nil {
		return
	}
	turn.cancel()
	s.emit(EventCancel, observability.LevelInfo, map[string]any{"turn_id": turn.ID})
}

// Clear truncates the transcript and drops the agent's conversation history.
// The history log, preference, and catalog are untouched.
func (s *Session) Clear() {
	s.transcript.Clear()
	s.agent.Reset()
}

func (s *Session) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "session",
		Data:      data,
	})
}
