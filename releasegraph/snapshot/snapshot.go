/*
	snapshot package provides immutable, timestamped graph snapshots and
	the cache that hands the current snapshot out to concurrent readers.
*/

package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/mycok/uGraph/releasegraph/graph"
)

// Snapshot wraps a single graph produced by one refresh cycle. Snapshots are
// never modified after creation.
type Snapshot struct {
	id        uuid.UUID
	createdAt time.Time
	graph     *graph.Graph
}

// New creates a snapshot for the provided graph with a fresh identifier.
func New(g *graph.Graph, createdAt time.Time) *Snapshot {
	return Restore(uuid.New(), createdAt, g)
}

// Restore re-creates a previously persisted snapshot.
func Restore(id uuid.UUID, createdAt time.Time, g *graph.Graph) *Snapshot {
	if g == nil {
		g = graph.Empty()
	}

	return &Snapshot{
		id:        id,
		createdAt: createdAt.UTC(),
		graph:     g,
	}
}

// ID returns the snapshot identifier.
func (s *Snapshot) ID() uuid.UUID { return s.id }

// CreatedAt returns the time the snapshot was built.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Graph returns the graph held by the snapshot.
func (s *Snapshot) Graph() *graph.Graph { return s.graph }
