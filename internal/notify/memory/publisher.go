// Package memory contains an in-memory append notifier for tests and
// local runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/openlibrary-harvester/internal/harvest"
)

// Publisher stores published append events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []harvest.AppendEvent
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// PublishAppended records the event.
func (p *Publisher) PublishAppended(_ context.Context, evt harvest.AppendEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// Events returns the recorded append events.
func (p *Publisher) Events() []harvest.AppendEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]harvest.AppendEvent, len(p.events))
	copy(out, p.events)
	return out
}
