package catalog

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"time"

	"github.com/finna-data/mcpchat/storage"
)

// ErrNoCache indicates the cache file is absent or unusable.
var ErrNoCache = errors.New("no cached catalog")

// cacheFile is the persisted snapshot format:
// {"ts": <unix-seconds-float>, "data": [{"id":..., "name":...}, ...]}.
type cacheFile struct {
	TS   float64      `json:"ts"`
	Data []Descriptor `json:"data"`
}

// Cache persists catalog snapshots to a single JSON file, replaced
// atomically on every store so readers never see a partial snapshot.
type Cache struct {
	path string
}

// NewCache creates a Cache backed by the file at path. An empty path
// disables persistence: Load always reports ErrNoCache and Store is a no-op.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Load reads the persisted snapshot. Returns ErrNoCache when the file is
// missing, malformed, or empty.
func (c *Cache) Load() (Snapshot, error) {
	if c.path == "" {
		return Snapshot{}, ErrNoCache
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Snapshot{}, ErrNoCache
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil || f.TS <= 0 {
		return Snapshot{}, ErrNoCache
	}

	sec, frac := math.Modf(f.TS)
	return Snapshot{
		FetchedAt: time.Unix(int64(sec), int64(frac*float64(time.Second))),
		Entries:   f.Data,
	}, nil
}

// Store persists the snapshot, overwriting any previous one.
func (c *Cache) Store(snap Snapshot) error {
	if c.path == "" {
		return nil
	}

	f := cacheFile{
		TS:   float64(snap.FetchedAt.UnixNano()) / float64(time.Second),
		Data: snap.Entries,
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return storage.WriteAtomic(c.path, data)
}
