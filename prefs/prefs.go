// Package prefs persists the user's selected model across sessions as a
// single JSON record. Writes are best-effort: a failure to persist never
// aborts the in-memory selection.
package prefs

import (
	"encoding/json"
	"os"

	"github.com/finna-data/mcpchat/storage"
)

type record struct {
	Model string `json:"model"`
}

// Store reads and writes the preference file.
type Store struct {
	path string
}

// NewStore creates a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save overwrites the persisted selection. The file is replaced atomically.
func (s *Store) Save(modelID string) error {
	if s.path == "" {
		return nil
	}

	data, err := json.Marshal(record{Model: modelID})
	if err != nil {
		return err
	}
	return storage.WriteAtomic(s.path, data)
}

// Load returns the persisted selection, or ok=false when no usable
// preference exists (missing file, malformed JSON, empty value).
func (s *Store) Load() (modelID string, ok bool) {
	if s.path == "" {
		return "", false
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Model == "" {
		return "", false
	}
	return rec.Model, true
}
