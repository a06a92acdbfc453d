package snapshot

import (
	"sync/atomic"

	"github.com/banderole-io/banderole/internal/domain"
)

// Store holds the active snapshot behind an atomic pointer. Readers never
// lock: every evaluation loads a self-consistent, fully-validated snapshot,
// and activation is a single pointer swap. Superseded snapshots stay valid
// for in-flight readers and are reclaimed by the garbage collector once the
// last reference is gone.
type Store struct {
	active atomic.Pointer[domain.Snapshot]
}

// NewStore creates an empty store with no active snapshot.
func NewStore() *Store {
	return &Store{}
}

// Active returns the current snapshot, or nil before the first activation.
func (s *Store) Active() *domain.Snapshot {
	return s.active.Load()
}

// Swap atomically publishes next as the active snapshot and returns the
// snapshot it replaced. The caller must have validated next first.
func (s *Store) Swap(next *domain.Snapshot) *domain.Snapshot {
	return s.active.Swap(next)
}
