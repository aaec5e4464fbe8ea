package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mycok/uGraph/releasegraph/snapshot"
)

// Static and compile-time check to ensure InMemoryStore implements
// snapshot.Store interface.
var _ snapshot.Store = (*InMemoryStore)(nil)

// InMemoryStore keeps the newest saved snapshot in memory. it can be
// concurrently accessed by multiple clients.
type InMemoryStore struct {
	mu     sync.RWMutex
	latest *snapshot.Snapshot
}

// NewInMemoryStore creates a new in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return new(InMemoryStore)
}

// Save persists the provided snapshot unless a newer one is already stored.
func (s *InMemoryStore) Save(_ context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest != nil && s.latest.CreatedAt().After(snap.CreatedAt()) {
		return nil
	}

	// Snapshots are immutable so holding the pointer is safe.
	s.latest = snap

	return nil
}

// Len returns the number of snapshots held by the store.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return 0
	}

	return 1
}

// Latest returns the most recently created snapshot.
func (s *InMemoryStore) Latest(_ context.Context) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, fmt.Errorf("latest snapshot: %w", snapshot.ErrNotFound)
	}

	return s.latest, nil
}
