package snapshot

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store that does not hold any snapshot yet.
var ErrNotFound = errors.New("not found")

// Store should be implemented by types that persist published snapshots so
// that a restarted process can serve the last known graph.
type Store interface {
	// Save persists the provided snapshot.
	Save(ctx context.Context, s *Snapshot) error

	// Latest returns the most recently created snapshot.
	Latest(ctx context.Context) (*Snapshot, error)
}
