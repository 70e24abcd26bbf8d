package session

import "github.com/finna-data/mcpchat/observability"

// Event types emitted by the session orchestrator.
const (
	EventSubmit       observability.EventType = "session.submit"
	EventBusy         observability.EventType = "session.busy"
	EventCancel       observability.EventType = "session.cancel"
	EventTurnComplete observability.EventType = "session.turn.complete"
	EventCatalogFetch observability.EventType = "catalog.fetch"
	EventModelSwitch  observability.EventType = "session.model.switch"
	EventPersistError observability.EventType = "session.persist.error"
)
