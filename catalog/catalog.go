// Package catalog manages the remote model catalog: a cached, filterable
// snapshot of the models the backing provider offers, with TTL-based
// staleness, forced refresh, and selection resolution for the /model command.
package catalog

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Presentation caps. These limit how many entries front ends display, not
// how many a snapshot holds.
const (
	ListLimit   = 25 // interactive /models listing
	PickerLimit = 50 // filtered picker
)

// Descriptor identifies one selectable model. Immutable once fetched.
type Descriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

// Snapshot is a timestamped model listing. A snapshot is either entirely
// absent or entirely valid; refresh replaces it atomically.
type Snapshot struct {
	FetchedAt time.Time
	Entries   []Descriptor
}

// Age returns how long ago the snapshot was fetched.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Filter returns the entries matching query (case-insensitive substring on
// id or display name; empty query matches everything), sorted by display
// name ascending.
func Filter(entries []Descriptor, query string) []Descriptor {
	needle := strings.ToLower(strings.TrimSpace(query))

	matched := make([]Descriptor, 0, len(entries))
	for _, d := range entries {
		if needle == "" ||
			strings.Contains(strings.ToLower(d.ID), needle) ||
			strings.Contains(strings.ToLower(d.DisplayName), needle) {
			matched = append(matched, d)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a := strings.ToLower(matched[i].DisplayName)
		b := strings.ToLower(matched[j].DisplayName)
		if a == b {
			return matched[i].ID < matched[j].ID
		}
		return a < b
	})

	return matched
}

// Resolve maps a /model token to a model id against the last rendered
// listing, under the interactive listing cap.
func Resolve(token string, listing []Descriptor) string {
	return ResolveWithin(token, listing, ListLimit)
}

// ResolveWithin resolves a token against a listing rendered under an
// explicit display cap, so numeric selection covers exactly the numbered
// lines the user saw. A purely numeric token within
// [1, min(limit, len(listing))] selects by 1-based position; any other
// token is treated as a literal id and returned unchanged. Unknown literal
// ids are accepted here and surface later as runtime failures if invalid.
func ResolveWithin(token string, listing []Descriptor, limit int) string {
	token = strings.TrimSpace(token)

	if n, err := strconv.Atoi(token); err == nil {
		if limit > len(listing) {
			limit = len(listing)
		}
		if n >= 1 && n <= limit {
			return listing[n-1].ID
		}
	}

	return token
}
