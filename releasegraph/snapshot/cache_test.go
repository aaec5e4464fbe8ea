package snapshot_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/releasegraph/graph"
	"github.com/mycok/uGraph/releasegraph/snapshot"
)

var _ = check.Suite(new(cacheTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type cacheTestSuite struct{}

func (s *cacheTestSuite) TestEmptyCache(c *check.C) {
	c.Assert(snapshot.NewCache().Current(), check.IsNil)

	var zero snapshot.Cache
	c.Assert(zero.Current(), check.IsNil)
}

func (s *cacheTestSuite) TestPublishReplacesCurrent(c *check.C) {
	cache := snapshot.NewCache()

	first := snapshot.New(chain(c, 2), time.Now())
	cache.Publish(first)
	held := cache.Current()
	c.Assert(held, check.Equals, first)

	second := snapshot.New(chain(c, 5), time.Now())
	cache.Publish(second)
	c.Assert(cache.Current(), check.Equals, second)

	// A handle obtained before the publish is unaffected.
	c.Assert(held.Graph().Len(), check.Equals, 2)
	c.Assert(held.Graph().EdgeCount(), check.Equals, 1)
}

func (s *cacheTestSuite) TestConcurrentReadersNeverObserveDanglingEdges(c *check.C) {
	cache := snapshot.NewCache()
	cache.Publish(snapshot.New(chain(c, 1), time.Now()))

	graphs := make([]*graph.Graph, 20)
	for i := range graphs {
		graphs[i] = chain(c, i+2)
	}

	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
		errs = make(chan error, 8)
	)

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for {
				select {
				case <-done:
					return
				default:
				}

				g := cache.Current().Graph()
				if g.EdgeCount() != g.Len()-1 {
					errs <- fmt.Errorf("torn snapshot: %d releases, %d edges", g.Len(), g.EdgeCount())

					return
				}

				for _, e := range g.Edges() {
					if e.From >= g.Len() || e.To >= g.Len() {
						errs <- fmt.Errorf("dangling edge %d -> %d", e.From, e.To)

						return
					}
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		cache.Publish(snapshot.New(graphs[i%len(graphs)], time.Now()))
	}

	close(done)
	wg.Wait()
	close(errs)

	for err := range errs {
		c.Fatal(err)
	}
}

// chain builds a linear graph with n releases.
func chain(c *check.C, n int) *graph.Graph {
	b := graph.NewBuilder()
	for i := 0; i < n; i++ {
		v := fmt.Sprintf("1.%d.0", i)
		c.Assert(b.AddRelease(graph.Release{Version: v}), check.IsNil)

		if i > 0 {
			c.Assert(b.AddEdge(fmt.Sprintf("1.%d.0", i-1), v, nil), check.IsNil)
		}
	}

	return b.Build()
}
