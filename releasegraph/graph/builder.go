package graph

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

type edgeKey struct {
	from string
	to   string
}

// Builder accumulates releases and edges and produces an immutable Graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	releases map[string]Release
	edges    map[edgeKey]map[string]string
	order    []edgeKey // Preserves edge insertion order.
}

// NewBuilder returns a new empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		releases: make(map[string]Release),
		edges:    make(map[edgeKey]map[string]string),
	}
}

// AddRelease adds a new release to the graph.
func (b *Builder) AddRelease(r Release) error {
	if r.Version == "" {
		return fmt.Errorf("add release: %w: empty version", ErrInvalidRelease)
	}

	if _, exists := b.releases[r.Version]; exists {
		return fmt.Errorf("add release %q: %w", r.Version, ErrDuplicateRelease)
	}

	b.releases[r.Version] = r

	return nil
}

// HasRelease reports whether a release with the given version was added.
func (b *Builder) HasRelease(version string) bool {
	_, exists := b.releases[version]

	return exists
}

// Release returns a previously added release.
func (b *Builder) Release(version string) (Release, bool) {
	r, exists := b.releases[version]

	return r, exists
}

// RemoveRelease removes a release along with every edge that touches it.
func (b *Builder) RemoveRelease(version string) {
	delete(b.releases, version)

	for key := range b.edges {
		if key.from == version || key.to == version {
			delete(b.edges, key)
		}
	}
}

// AddEdge adds a directed edge between two previously added releases.
func (b *Builder) AddEdge(from, to string, metadata map[string]string) error {
	if from == to {
		return fmt.Errorf("add edge %q -> %q: %w", from, to, ErrSelfEdge)
	}

	if !b.HasRelease(from) || !b.HasRelease(to) {
		return fmt.Errorf("add edge %q -> %q: %w", from, to, ErrUnknownRelease)
	}

	key := edgeKey{from: from, to: to}
	if _, exists := b.edges[key]; exists {
		return fmt.Errorf("add edge %q -> %q: %w", from, to, ErrDuplicateEdge)
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	b.edges[key] = metadata
	b.order = append(b.order, key)

	return nil
}

// RemoveEdge removes the edge between two releases if it exists.
func (b *Builder) RemoveEdge(from, to string) {
	delete(b.edges, edgeKey{from: from, to: to})
}

// Build assembles the accumulated releases and edges into a Graph. Releases
// are ordered by semantic version; versions that are not valid semantic
// versions are placed last in lexical order.
func (b *Builder) Build() *Graph {
	g := &Graph{
		releases: make([]Release, 0, len(b.releases)),
		index:    make(map[string]int, len(b.releases)),
	}

	for _, r := range b.releases {
		g.releases = append(g.releases, r)
	}

	sort.SliceStable(g.releases, func(i, j int) bool {
		return lessVersion(g.releases[i].Version, g.releases[j].Version)
	})

	for i, r := range g.releases {
		g.index[r.Version] = i
	}

	g.edges = make([]Edge, 0, len(b.edges))
	emitted := make(map[edgeKey]struct{}, len(b.edges))
	for _, key := range b.order {
		md, exists := b.edges[key]
		if !exists {
			continue // removed after insertion.
		}

		if _, dup := emitted[key]; dup {
			continue
		}
		emitted[key] = struct{}{}

		from, fromOK := g.index[key.from]
		to, toOK := g.index[key.to]
		if !fromOK || !toOK {
			continue
		}

		if len(md) == 0 {
			md = nil
		}

		g.edges = append(g.edges, Edge{From: from, To: to, Metadata: md})
	}

	g.buildAdjacency()

	return g
}

func lessVersion(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c < 0
		}

		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
