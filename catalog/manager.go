package catalog

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the freshness window for cached snapshots.
const DefaultTTL = 3600 * time.Second

// Manager fetches the model catalog through the cache, filters it, and
// qualifies model ids. The in-memory snapshot is replaced as a whole under
// the write lock, so concurrent readers never observe a partial listing.
type Manager struct {
	fetcher  Fetcher
	cache    *Cache
	ttl      time.Duration
	provider string
	now      func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithProvider overrides the provider qualifier used by Normalize.
func WithProvider(provider string) Option {
	return func(m *Manager) { m.provider = provider }
}

// WithClock overrides the time source for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over the given fetcher and cache.
func NewManager(fetcher Fetcher, cache *Cache, opts ...Option) *Manager {
	m := &Manager{
		fetcher:  fetcher,
		cache:    cache,
		ttl:      DefaultTTL,
		provider: "openai",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fetch returns the current catalog snapshot. When force is false and a
// snapshot (in memory or persisted) is younger than the freshness window, it
// is served from cache. Otherwise the listing is retrieved remotely; on
// success the snapshot is replaced and persisted, on failure the previous
// snapshot is left untouched and the error is surfaced to the caller.
func (m *Manager) Fetch(ctx context.Context, force bool) (Snapshot, bool, error) {
	now := m.now()

	if !force {
		m.mu.RLock()
		snap := m.snapshot
		m.mu.RUnlock()

		if snap != nil && snap.Age(now) < m.ttl {
			return *snap, true, nil
		}

		if snap == nil && m.cache != nil {
			if persisted, err := m.cache.Load(); err == nil && persisted.Age(now) < m.ttl {
				m.mu.Lock()
				m.snapshot = &persisted
				m.mu.Unlock()
				return persisted, true, nil
			}
		}
	}

	entries, err := m.fetcher.Fetch(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}

	fresh := Snapshot{FetchedAt: now, Entries: entries}

	m.mu.Lock()
	m.snapshot = &fresh
	m.mu.Unlock()

	if m.cache != nil {
		// Persistence is best-effort; a write failure must not invalidate
		// the snapshot we just fetched.
		_ = m.cache.Store(fresh)
	}

	return fresh, false, nil
}

// List filters the current snapshot. Returns nil when no snapshot exists.
func (m *Manager) List(query string) []Descriptor {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap == nil {
		return nil
	}
	return Filter(snap.Entries, query)
}

// Current returns the in-memory snapshot, if any.
func (m *Manager) Current() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return Snapshot{}, false
	}
	return *m.snapshot, true
}

// Normalize qualifies a bare catalog id with the provider prefix. Ids that
// already carry a provider qualifier, and ids not present in the current
// snapshot, pass through unchanged.
func (m *Manager) Normalize(id string) string {
	if idx := strings.Index(id, ":"); idx > 0 {
		return id
	}

	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap == nil {
		return id
	}
	for _, d := range snap.Entries {
		if d.ID == id {
			return m.provider + ":" + id
		}
	}
	return id
}
