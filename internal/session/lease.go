package session

import "sync"

// Leases provides per-key mutual exclusion for the duration of one step.
// Acquire fails fast with ErrSessionBusy instead of queueing; concurrent
// mutation of one session's draft history would break the strictly
// increasing version invariant.
type Leases struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLeases creates an empty lease table.
func NewLeases() *Leases {
	return &Leases{held: make(map[string]struct{})}
}

// Acquire takes the lease for key, or returns ErrSessionBusy if a step for
// that key is already in flight.
func (l *Leases) Acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return ErrSessionBusy
	}
	l.held[key] = struct{}{}
	return nil
}

// Release frees the lease for key. Releasing an unheld lease is a no-op.
func (l *Leases) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
