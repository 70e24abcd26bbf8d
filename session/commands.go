package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/finna-data/mcpchat/catalog"
	"github.com/finna-data/mcpchat/observability"
	"github.com/finna-data/mcpchat/transcript"
)

// dispatch recognizes the closed command set, case-insensitively. It reports
// handled=false for unrecognized commands so the input falls through to
// question handling.
func (s *Session) dispatch(input string) (Disposition, bool) {
	fields := strings.Fields(input)
	command := strings.ToLower(fields[0])

	switch command {
	case "/exit":
		s.Cancel()
		return DispositionExit, true
	case "/clear":
		s.Clear()
		return DispositionNone, true
	case "/models":
		s.listModels(false, strings.Join(fields[1:], " "))
		return DispositionNone, true
	case "/models!":
		s.listModels(true, strings.Join(fields[1:], " "))
		return DispositionNone, true
	case "/model":
		s.switchModel(fields[1:])
		return DispositionNone, true
	default:
		return DispositionNone, false
	}
}

// listModels fetches the catalog and renders a truncated listing into a
// System entry. The rendered listing and its display cap are recorded so
// /model resolves numbers against exactly the lines shown. A non-empty
// query filters the listing and raises the cap to the picker limit.
func (s *Session) listModels(force bool, query string) {
	_, fromCache, err := s.catalog.Fetch(context.Background(), force)

	s.emit(EventCatalogFetch, observability.LevelInfo, map[string]any{
		"force":      force,
		"from_cache": fromCache,
		"failed":     err != nil,
	})

	if err != nil {
		s.transcript.Append(transcript.System("model list unavailable: " + transcript.CausalChain(err)))
		return
	}

	limit := catalog.ListLimit
	if query != "" {
		limit = catalog.PickerLimit
	}

	listing := s.catalog.List(query)
	s.mu.Lock()
	s.lastListing = listing
	s.lastLimit = limit
	s.mu.Unlock()

	if len(listing) == 0 {
		s.transcript.Append(transcript.System("no models available"))
		return
	}

	shown := listing
	if len(shown) > limit {
		shown = shown[:limit]
	}

	var b strings.Builder
	source := "remote"
	if fromCache {
		source = "cache"
	}
	fmt.Fprintf(&b, "models (%d, %s):", len(listing), source)
	for i, d := range shown {
		fmt.Fprintf(&b, "\n%2d. %s (%s)", i+1, d.DisplayName, d.ID)
	}
	if len(listing) > len(shown) {
		fmt.Fprintf(&b, "\n... and %d more", len(listing)-len(shown))
	}

	s.transcript.Append(transcript.System(b.String()))
}

// switchModel resolves the token against the last-rendered listing,
// normalizes it, switches the current model, and saves the preference
// best-effort.
func (s *Session) switchModel(args []string) {
	if len(args) == 0 {
		s.transcript.Append(transcript.System("current model: " + s.Model()))
		return
	}

	s.mu.Lock()
	listing := s.lastListing
	limit := s.lastLimit
	s.mu.Unlock()
	if limit == 0 {
		limit = catalog.ListLimit
	}

	resolved := catalog.ResolveWithin(args[0], listing, limit)
	normalized := s.catalog.Normalize(resolved)

	s.mu.Lock()
	s.model = normalized
	s.mu.Unlock()
	s.agent.SetModel(normalized)

	if err := s.prefs.Save(normalized); err != nil {
		s.emit(EventPersistError, observability.LevelWarning, map[string]any{
			"store": "prefs",
			"error": err.Error(),
		})
	}

	s.transcript.Append(transcript.System("model set to " + normalized))
	s.emit(EventModelSwitch, observability.LevelInfo, map[string]any{"model": normalized})
}
