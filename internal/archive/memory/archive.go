// Package memory stores archived payloads in-memory for development.
package memory

import (
	"context"
	"sync"
)

// Archive keeps payloads in a map keyed by archive key.
type Archive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory archive.
func New() *Archive {
	return &Archive{data: make(map[string][]byte)}
}

// Put stores a copy of the payload under key.
func (a *Archive) Put(_ context.Context, key string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[key] = append([]byte(nil), payload...)
	return nil
}

// Get returns the payload stored under key, if any.
func (a *Archive) Get(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	payload, ok := a.data[key]
	return payload, ok
}

// Len returns the number of archived payloads.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
