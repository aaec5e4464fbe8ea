package cdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // registers the postgres driver.

	"github.com/mycok/uGraph/releasegraph/graph"
	"github.com/mycok/uGraph/releasegraph/snapshot"
)

var (
	createTableQuery = `
					CREATE TABLE IF NOT EXISTS graph_snapshots (
						id UUID PRIMARY KEY,
						created_at TIMESTAMPTZ NOT NULL,
						graph JSONB NOT NULL
					)
					`
	insertSnapshotQuery = `
					INSERT INTO graph_snapshots (id, created_at, graph)
					VALUES ($1, $2, $3)
					ON CONFLICT (id) DO NOTHING
					`
	pruneSnapshotsQuery = `
					DELETE FROM graph_snapshots
					WHERE id NOT IN (
						SELECT id FROM graph_snapshots
						ORDER BY created_at DESC
						LIMIT $1
					)
					`
	latestSnapshotQuery = `
					SELECT id, created_at, graph FROM graph_snapshots
					ORDER BY created_at DESC
					LIMIT 1
					`
)

const opTimeout = 5 * time.Second

// RetainedSnapshots is the number of most recent snapshots kept by Save.
const RetainedSnapshots = 3

// Static and compile-time check to ensure CockroachDBStore implements
// snapshot.Store interface.
var _ snapshot.Store = (*CockroachDBStore)(nil)

// CockroachDBStore persists graph snapshots in a CockroachDB (or any
// postgres wire compatible) database.
type CockroachDBStore struct {
	db *sql.DB
}

// NewCockroachDBStore connects to the database at dsn and ensures the
// snapshot table exists.
func NewCockroachDBStore(dsn string) (*CockroachDBStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create snapshot table: %w", err)
	}

	return &CockroachDBStore{db}, nil
}

// Close terminates the connection to the database.
func (s *CockroachDBStore) Close() error {
	return s.db.Close()
}

// Save persists the provided snapshot and prunes all but the
// RetainedSnapshots most recent ones in the same transaction.
func (s *CockroachDBStore) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	doc, err := json.Marshal(snap.Graph())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if _, err = tx.ExecContext(
		ctx, insertSnapshotQuery, snap.ID(), snap.CreatedAt(), doc,
	); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("save snapshot: %w", err)
	}

	if _, err = tx.ExecContext(ctx, pruneSnapshotsQuery, RetainedSnapshots); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("prune snapshots: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

// Latest returns the most recently created snapshot.
func (s *CockroachDBStore) Latest(ctx context.Context) (*snapshot.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		id        uuid.UUID
		createdAt time.Time
		doc       []byte
	)

	err := s.db.QueryRowContext(ctx, latestSnapshotQuery).Scan(&id, &createdAt, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("latest snapshot: %w", snapshot.ErrNotFound)
		}

		return nil, fmt.Errorf("latest snapshot: %w", err)
	}

	g := new(graph.Graph)
	if err := json.Unmarshal(doc, g); err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}

	return snapshot.Restore(id, createdAt, g), nil
}
