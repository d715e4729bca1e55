// Package memory keeps harvested records in-memory for development
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/openlibrary-harvester/internal/harvest"
)

// WorkStore accumulates appended records in order. It reports itself
// as existing once the first batch lands, mirroring the file-backed
// store's created-on-first-append behavior.
type WorkStore struct {
	mu      sync.RWMutex
	records []harvest.Record
	touched bool
}

// NewWorkStore creates an empty in-memory store.
func NewWorkStore() *WorkStore {
	return &WorkStore{}
}

// Exists reports whether any append has happened.
func (s *WorkStore) Exists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.touched, nil
}

// Keys returns the work ids of every appended record, oldest first.
func (s *WorkStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for _, rec := range s.records {
		keys = append(keys, rec.WorkID)
	}
	return keys, nil
}

// Append adds records to the store.
func (s *WorkStore) Append(_ context.Context, records []harvest.Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = true
	s.records = append(s.records, records...)
	return nil
}

// Records returns a copy of everything appended so far.
func (s *WorkStore) Records() []harvest.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]harvest.Record, len(s.records))
	copy(out, s.records)
	return out
}
