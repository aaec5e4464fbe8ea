package snapshottest

import (
	"context"
	"errors"
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/releasegraph/graph"
	"github.com/mycok/uGraph/releasegraph/snapshot"
)

// BaseSuite defines a set of re-usable tests that can be executed against
// any concrete type that implements the snapshot.Store interface.
type BaseSuite struct {
	store snapshot.Store

	retained int
	count    func(*check.C) int
}

// SetStore configures the test-suite to run all tests against an instance
// of snapshot.Store.
func (s *BaseSuite) SetStore(store snapshot.Store) {
	s.store = store
}

// SetRetention enables TestSaveKeepsBoundedHistory. count reports the
// number of snapshots currently held by the store and limit is the most
// it may ever hold.
func (s *BaseSuite) SetRetention(limit int, count func(*check.C) int) {
	s.retained = limit
	s.count = count
}

// TestLatestOnEmptyStore verifies that an empty store reports ErrNotFound.
func (s *BaseSuite) TestLatestOnEmptyStore(c *check.C) {
	_, err := s.store.Latest(context.TODO())
	c.Assert(errors.Is(err, snapshot.ErrNotFound), check.Equals, true)
}

// TestSaveAndLatest verifies that the newest snapshot is returned intact.
func (s *BaseSuite) TestSaveAndLatest(c *check.C) {
	now := time.Now().UTC().Truncate(time.Millisecond)

	older := snapshot.New(makeGraph(c, "1.0.0"), now.Add(-time.Minute))
	newer := snapshot.New(makeGraph(c, "1.0.0", "1.1.0"), now)

	c.Assert(s.store.Save(context.TODO(), newer), check.IsNil)
	c.Assert(s.store.Save(context.TODO(), older), check.IsNil)

	got, err := s.store.Latest(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(got.ID(), check.Equals, newer.ID())
	c.Assert(got.CreatedAt().Equal(newer.CreatedAt()), check.Equals, true)
	c.Assert(got.Graph().Len(), check.Equals, 2)
	c.Assert(got.Graph().HasEdge("1.0.0", "1.1.0"), check.Equals, true)

	r := got.Graph().Release(0)
	c.Assert(r.Payload, check.Equals, "sha256:1.0.0")
	c.Assert(r.Labels, check.DeepEquals, map[string]string{"channel": "stable"})
}

// TestSaveKeepsBoundedHistory verifies that repeated saves do not grow the
// store past its retention limit and that the newest snapshot survives.
func (s *BaseSuite) TestSaveKeepsBoundedHistory(c *check.C) {
	if s.count == nil {
		c.Skip("store does not report its size")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	var last *snapshot.Snapshot
	for i := 0; i < s.retained+4; i++ {
		last = snapshot.New(makeGraph(c, "1.0.0"), now.Add(time.Duration(i)*time.Minute))
		c.Assert(s.store.Save(context.TODO(), last), check.IsNil)
		c.Assert(s.count(c) <= s.retained, check.Equals, true, check.Commentf("save #%d", i))
	}

	got, err := s.store.Latest(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(got.ID(), check.Equals, last.ID())
}

// makeGraph builds a linear graph over the provided versions.
func makeGraph(c *check.C, versions ...string) *graph.Graph {
	b := graph.NewBuilder()
	for i, v := range versions {
		c.Assert(b.AddRelease(graph.Release{
			Version: v,
			Payload: "sha256:" + v,
			Labels:  map[string]string{"channel": "stable"},
		}), check.IsNil)

		if i > 0 {
			c.Assert(b.AddEdge(versions[i-1], v, nil), check.IsNil)
		}
	}

	return b.Build()
}
