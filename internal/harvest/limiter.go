package harvest

import "context"

// Gate is a counting admission gate bounding concurrent enrichment. Waiters
// are admitted in arrival order as slots free up.
type Gate struct {
	slots chan struct{}
}

// NewGate builds a gate admitting up to capacity concurrent holders.
// Capacities below one are clamped to one.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot frees or ctx finishes.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees one slot. Releasing without a matching Acquire is a
// programming error.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		panic("harvest: gate released without acquire")
	}
}

// InFlight reports how many slots are currently held.
func (g *Gate) InFlight() int {
	return len(g.slots)
}

// Capacity reports the maximum number of concurrent holders.
func (g *Gate) Capacity() int {
	return cap(g.slots)
}
