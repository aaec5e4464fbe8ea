package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/metadata/mocks"
	"github.com/mycok/uGraph/releasegraph/graph"
)

var _ = check.Suite(new(ConfigTestSuite))
var _ = check.Suite(new(BuilderTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

const (
	prevAdd    = DefaultLabelPrefix + ".previous.add"
	prevRemove = DefaultLabelPrefix + ".previous.remove"
	nextAdd    = DefaultLabelPrefix + ".next.add"
	nextRemove = DefaultLabelPrefix + ".next.remove"
	archKey    = DefaultLabelPrefix + ".release.arch"
)

type ConfigTestSuite struct{}

func (s *ConfigTestSuite) TestConfigValidation(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	config := Config{Source: mocks.NewMockSource(ctrl)}
	c.Assert(config.validate(), check.IsNil)
	c.Assert(config.LabelPrefix, check.Equals, DefaultLabelPrefix)
	c.Assert(config.Logger, check.Not(check.IsNil), check.Commentf("default logger was not assigned"))

	config = Config{}
	c.Assert(config.validate(), check.ErrorMatches, "(?ms).*metadata source not provided.*")
}

type BuilderTestSuite struct{}

func (s *BuilderTestSuite) newLoader(c *check.C, src metadata.Source) *Loader {
	l, err := New(Config{Source: src})
	c.Assert(err, check.IsNil)

	return l
}

func (s *BuilderTestSuite) TestMalformedEntriesAreSkipped(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return([]metadata.Tag{
		{Name: "latest", Digest: "sha256:aaa"},
		{Name: "1.0.0", Digest: "sha256:bbb"},
		{Name: "2.0.0"}, // missing digest.
	}, nil)

	g, err := s.newLoader(c, src).Load(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(g.Len(), check.Equals, 1)
	c.Assert(g.Release(0).Version, check.Equals, "1.0.0")
	c.Assert(g.Release(0).Payload, check.Equals, "sha256:bbb")
}

func (s *BuilderTestSuite) TestSourceFailureIsReturned(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return(nil, errors.New("registry unreachable"))

	g, err := s.newLoader(c, src).Load(context.TODO())
	c.Assert(err, check.ErrorMatches, ".*registry unreachable.*")
	c.Assert(g, check.IsNil)
}

func (s *BuilderTestSuite) TestEdgeDerivation(c *check.C) {
	l := s.newLoader(c, metadata.SourceFunc(nil))

	g, stats := l.Derive([]metadata.Tag{
		{Name: "1.0.0", Digest: "sha256:1", Labels: map[string]string{nextAdd: "1.1.0, 9.9.9"}},
		{Name: "1.1.0", Digest: "sha256:2", Labels: map[string]string{prevAdd: "1.0.0"}},
		{Name: "1.2.0", Digest: "sha256:3", Labels: map[string]string{prevAdd: "1.0.0,1.1.0,1.2.0,bogus"}},
	})

	c.Assert(g.Len(), check.Equals, 3)
	c.Assert(g.HasEdge("1.0.0", "1.1.0"), check.Equals, true)
	c.Assert(g.HasEdge("1.0.0", "1.2.0"), check.Equals, true)
	c.Assert(g.HasEdge("1.1.0", "1.2.0"), check.Equals, true)
	c.Assert(g.EdgeCount(), check.Equals, 3)

	// 9.9.9 is unknown, 1.2.0 -> 1.2.0 is a self edge and bogus is not a version.
	c.Assert(stats.DroppedEdges, check.Equals, 3)
	c.Assert(stats.MalformedEntries, check.Equals, 0)
}

func (s *BuilderTestSuite) TestRemovalsWinOverAdditions(c *check.C) {
	l := s.newLoader(c, metadata.SourceFunc(nil))

	g, _ := l.Derive([]metadata.Tag{
		{Name: "1.2.0", Digest: "sha256:3", Labels: map[string]string{prevAdd: "1.0.0,1.1.0", prevRemove: "1.0.0"}},
		{Name: "1.0.0", Digest: "sha256:1", Labels: map[string]string{nextAdd: "1.1.0", nextRemove: "1.1.0"}},
		{Name: "1.1.0", Digest: "sha256:2", Labels: map[string]string{prevAdd: "1.0.0"}},
	})

	c.Assert(g.EdgeCount(), check.Equals, 1)
	c.Assert(g.HasEdge("1.1.0", "1.2.0"), check.Equals, true)
}

func (s *BuilderTestSuite) TestRemovedAndDuplicateReleases(c *check.C) {
	l := s.newLoader(c, metadata.SourceFunc(nil))

	g, stats := l.Derive([]metadata.Tag{
		{Name: "1.0.0", Digest: "sha256:1"},
		{Name: "1.0.0-copy", Digest: "sha256:2", Labels: map[string]string{DefaultLabelPrefix + ".release.version": "1.0.0"}},
		{Name: "1.1.0", Digest: "sha256:3", Labels: map[string]string{DefaultLabelPrefix + ".release.remove": "true", prevAdd: "1.0.0"}},
	})

	c.Assert(g.Len(), check.Equals, 1)
	c.Assert(g.EdgeCount(), check.Equals, 0)
	c.Assert(stats.MalformedEntries, check.Equals, 1)
	c.Assert(stats.RemovedReleases, check.Equals, 1)
}

func (s *BuilderTestSuite) TestReleaseLabelsAndEdgeMetadata(c *check.C) {
	l := s.newLoader(c, metadata.SourceFunc(nil))

	g, _ := l.Derive([]metadata.Tag{
		{Name: "1.0.0", Digest: "sha256:1", Architecture: "amd64"},
		{Name: "1.1.0", Digest: "sha256:2", Architecture: "amd64", Labels: map[string]string{
			archKey: "multi",
			prevAdd: "1.0.0",
			DefaultLabelPrefix + ".release.blocked-for": "arch=s390x",
		}},
	})

	i, ok := g.Index("1.0.0")
	c.Assert(ok, check.Equals, true)
	c.Assert(g.Release(i).Labels[archKey], check.Equals, "amd64")

	i, ok = g.Index("1.1.0")
	c.Assert(ok, check.Equals, true)
	c.Assert(g.Release(i).Labels[archKey], check.Equals, "multi")

	edges := g.Edges()
	c.Assert(edges, check.HasLen, 1)
	c.Assert(edges[0].Metadata, check.DeepEquals, map[string]string{graph.EdgeBlockedFor: "arch=s390x"})
}
