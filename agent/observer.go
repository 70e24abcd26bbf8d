package agent

import "github.com/finna-data/mcpchat/observability"

// Event types emitted by the backend during a run.
const (
	EventRunStart    observability.EventType = "agent.run.start"
	EventRunComplete observability.EventType = "agent.run.complete"
	EventToolCall    observability.EventType = "agent.tool.call"
)
