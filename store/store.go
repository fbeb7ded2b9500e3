package store

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Record describes one compiled artifact tracked by the store.
type Record struct {
	OutputPath string    `json:"output_path"`
	SourcePath string    `json:"source_path"`
	Expiration time.Time `json:"expiration"`
}

// Expired reports whether the record's validity window has passed at t.
func (r Record) Expired(t time.Time) bool {
	return !r.Expiration.After(t)
}

// Store is a durable id to Record mapping backed by a single JSON document.
// The document is read wholesale by Load and rewritten wholesale after every
// mutation.
type Store struct {
	path string

	mu      sync.RWMutex
	records map[string]Record
}

// New creates a store backed by the JSON document at path. Call Load to read
// existing state.
func New(path string) *Store {
	return &Store{
		path:    path,
		records: make(map[string]Record),
	}
}

// Load replaces the in-memory mapping with the content of the backing file.
// A missing or malformed file resets the store to empty instead of failing.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]Record)
	if d, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(d, &records); err != nil {
			records = make(map[string]Record)
		}
	}
	s.records = records
}

// Save rewrites the backing file with the full in-memory mapping.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	d, err := json.Marshal(s.records)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, d, 0o644)
}

// Get returns the record for id if present.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	return r, ok
}

// Put inserts the record and persists the store before returning.
func (s *Store) Put(id string, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = r
	return s.saveLocked()
}

// Delete removes the record for id and persists the store before returning.
// Deleting an absent id is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return s.saveLocked()
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// List returns a copy of the current id to record mapping.
func (s *Store) List() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt := make(map[string]Record, len(s.records))
	for id, r := range s.records {
		rt[id] = r
	}
	return rt
}
