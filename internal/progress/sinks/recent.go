package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/openlibrary-harvester/internal/progress"
)

const (
	defaultRecentCapacity  = 256
	defaultSubscribeBuffer = 16
)

// RecentSink retains the newest progress events in a fixed-size ring and fans
// live events out to subscribers. The ops API reads both views: the ring for
// GET /progress/recent and subscriptions for the event stream.
type RecentSink struct {
	mu     sync.Mutex
	ring   []progress.Event
	next   int
	full   bool
	subs   map[int]chan progress.Event
	subSeq int
	closed bool
}

// NewRecentSink sizes the ring; capacities below one fall back to the default.
func NewRecentSink(capacity int) *RecentSink {
	if capacity < 1 {
		capacity = defaultRecentCapacity
	}
	return &RecentSink{
		ring: make([]progress.Event, capacity),
		subs: make(map[int]chan progress.Event),
	}
}

// Consume records each event and forwards it to live subscribers without
// blocking; a slow subscriber misses events rather than stalling the hub.
func (s *RecentSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for _, evt := range batch {
		s.ring[s.next] = evt
		s.next++
		if s.next == len(s.ring) {
			s.next = 0
			s.full = true
		}
		for _, ch := range s.subs {
			select {
			case ch <- evt:
			default:
			}
		}
	}
	return nil
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns everything retained.
func (s *RecentSink) Recent(limit int) []progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.next
	if s.full {
		size = len(s.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]progress.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := s.next - i
		if idx < 0 {
			idx += len(s.ring)
		}
		out = append(out, s.ring[idx])
	}
	return out
}

// Subscribe registers a live event channel with the given buffer. The returned
// cancel function unregisters and closes the channel; calling it more than
// once is safe.
func (s *RecentSink) Subscribe(buffer int) (<-chan progress.Event, func()) {
	if buffer < 1 {
		buffer = defaultSubscribeBuffer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan progress.Event, buffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.subSeq
	s.subSeq++
	s.subs[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close stops fan-out and closes every subscriber channel. Retained events
// remain readable through Recent.
func (s *RecentSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	return nil
}
