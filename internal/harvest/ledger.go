package harvest

import "sync"

// Ledger is the in-memory set of work ids known to be durably persisted.
// It answers membership during partitioning and admits ids only after the
// store append returns, so a crash can never leave the ledger ahead of the
// store.
type Ledger struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{ids: make(map[string]struct{})}
}

// Seed replaces the set with the keys read from the store at startup.
func (l *Ledger) Seed(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
}

// Has reports whether id was already persisted.
func (l *Ledger) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Add marks ids as persisted. Call it only after the append succeeded.
func (l *Ledger) Add(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
}

// Len reports how many work ids the ledger holds.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}
