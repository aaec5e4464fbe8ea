/*
	graph package defines the release upgrade graph. Releases are stored in
	a fixed arena and edges refer to them by index which keeps a built graph
	immutable and cheap to share between concurrent readers.
*/

package graph

// Release represents a single graph node. it serves as a model / schema object.
type Release struct {
	Version string            // Unique release identifier
	Payload string            // Content-addressed payload reference [ie image digest]
	Labels  map[string]string // Arbitrary release metadata
}

// Label returns the value of the named release label.
func (r Release) Label(key string) (string, bool) {
	v, ok := r.Labels[key]

	return v, ok
}

// Edge represents a directed upgrade path that originates from the release
// at index From and terminates at the release at index To.
type Edge struct {
	From     int               // Index of the source release
	To       int               // Index of the destination release
	Metadata map[string]string // Optional edge conditions
}

// Graph is an immutable set of releases and the upgrade edges between them.
//
// Graph values are never mutated after they are built; the label and
// metadata maps handed out by accessors are shared and must be treated as
// read-only by callers.
type Graph struct {
	releases []Release
	edges    []Edge
	index    map[string]int
	out      [][]int // Maps a release index to the indexes of its outgoing edges.
}

// Empty returns a graph without releases or edges.
func Empty() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Len returns the number of releases in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}

	return len(g.releases)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}

	return len(g.edges)
}

// Release returns the release stored at index i.
func (g *Graph) Release(i int) Release {
	return g.releases[i]
}

// Releases returns a copy of the graph release list.
func (g *Graph) Releases() []Release {
	if g == nil {
		return nil
	}

	return append([]Release(nil), g.releases...)
}

// Edges returns a copy of the graph edge list.
func (g *Graph) Edges() []Edge {
	if g == nil {
		return nil
	}

	return append([]Edge(nil), g.edges...)
}

// Index performs a release lookup by version.
func (g *Graph) Index(version string) (int, bool) {
	if g == nil {
		return -1, false
	}

	i, ok := g.index[version]

	return i, ok
}

// HasEdge reports whether the graph contains an edge between the two
// release versions.
func (g *Graph) HasEdge(from, to string) bool {
	fi, ok := g.Index(from)
	if !ok {
		return false
	}

	ti, ok := g.Index(to)
	if !ok {
		return false
	}

	for _, ei := range g.out[fi] {
		if g.edges[ei].To == ti {
			return true
		}
	}

	return false
}

// Successors returns the indexes of all releases directly reachable from
// the release at index i.
func (g *Graph) Successors(i int) []int {
	succ := make([]int, 0, len(g.out[i]))
	for _, ei := range g.out[i] {
		succ = append(succ, g.edges[ei].To)
	}

	return succ
}

// Reachable returns the versions of all releases reachable from the named
// release, excluding the release itself. Cycles are visited once.
func (g *Graph) Reachable(version string) []string {
	start, ok := g.Index(version)
	if !ok {
		return nil
	}

	visited := make([]bool, len(g.releases))
	visited[start] = true
	queue := []int{start}

	var versions []string
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range g.Successors(curr) {
			if visited[next] {
				continue
			}

			visited[next] = true
			versions = append(versions, g.releases[next].Version)
			queue = append(queue, next)
		}
	}

	return versions
}

// Subgraph returns a new graph containing the releases accepted by
// keepRelease and the edges accepted by keepEdge whose endpoints both
// survived. Either predicate may be nil to keep everything. The result is
// always a subgraph of g and is computed in a single O(releases+edges) pass.
func (g *Graph) Subgraph(
	keepRelease func(i int, r Release) bool, keepEdge func(e Edge) bool,
) *Graph {

	if g == nil {
		return Empty()
	}

	// remap[i] holds the new index of release i or -1 if it was dropped.
	remap := make([]int, len(g.releases))
	sub := &Graph{
		releases: make([]Release, 0, len(g.releases)),
		index:    make(map[string]int, len(g.releases)),
	}

	for i, r := range g.releases {
		if keepRelease != nil && !keepRelease(i, r) {
			remap[i] = -1

			continue
		}

		remap[i] = len(sub.releases)
		sub.index[r.Version] = remap[i]
		sub.releases = append(sub.releases, r)
	}

	sub.edges = make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		from, to := remap[e.From], remap[e.To]
		if from < 0 || to < 0 {
			continue
		}

		if keepEdge != nil && !keepEdge(e) {
			continue
		}

		sub.edges = append(sub.edges, Edge{From: from, To: to, Metadata: e.Metadata})
	}

	sub.buildAdjacency()

	return sub
}

func (g *Graph) buildAdjacency() {
	g.out = make([][]int, len(g.releases))
	for i, e := range g.edges {
		g.out[e.From] = append(g.out[e.From], i)
	}
}

// EdgeBlockedFor is the edge metadata key holding the comma-separated
// param=value pairs of clients that must not see the edge.
const EdgeBlockedFor = "blocked-for"
