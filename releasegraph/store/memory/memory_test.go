package memory

import (
	"testing"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/releasegraph/snapshot/snapshottest"
)

// Initialize and register an instance of the inMemoryStoreTestSuite to be
// executed by check testing package.
var _ = check.Suite(new(inMemoryStoreTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

// inMemoryStoreTestSuite embeds and runs the BaseSuite tests methods.
type inMemoryStoreTestSuite struct {
	snapshottest.BaseSuite
}

func (s *inMemoryStoreTestSuite) SetUpTest(c *check.C) {
	store := NewInMemoryStore()
	s.SetStore(store)
	s.SetRetention(1, func(*check.C) int { return store.Len() })
}
