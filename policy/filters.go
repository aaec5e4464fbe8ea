package policy

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mycok/uGraph/query"
	"github.com/mycok/uGraph/releasegraph/graph"
)

// Selectors keeps the releases whose selected label lists the value the
// client asked for. Parameters absent from the query impose no restriction
// and edges to dropped releases disappear with them.
func Selectors(selectors map[string]string) Filter {
	params := sortedParams(selectors)

	return func(g *graph.Graph, q query.ClientQuery) *graph.Graph {
		type match struct{ label, value string }

		var active []match
		for _, p := range params {
			if v, ok := q.Get(p); ok {
				active = append(active, match{label: selectors[p], value: v})
			}
		}

		if len(active) == 0 {
			return g
		}

		return g.Subgraph(func(_ int, r graph.Release) bool {
			for _, m := range active {
				list, ok := r.Label(m.label)
				if !ok || !listContains(list, m.value) {
					return false
				}
			}

			return true
		}, nil)
	}
}

// BlockedEdges drops the edges whose blocked-for metadata names a
// param=value pair carried by the query.
func BlockedEdges() Filter {
	return func(g *graph.Graph, q query.ClientQuery) *graph.Graph {
		if len(q) == 0 {
			return g
		}

		return g.Subgraph(nil, func(e graph.Edge) bool {
			return !blocked(e.Metadata[graph.EdgeBlockedFor], q)
		})
	}
}

func blocked(rules string, q query.ClientQuery) bool {
	for _, rule := range strings.Split(rules, ",") {
		param, value, ok := strings.Cut(strings.TrimSpace(rule), "=")
		if !ok {
			continue
		}

		if v, present := q.Get(strings.TrimSpace(param)); present && v == strings.TrimSpace(value) {
			return true
		}
	}

	return false
}

// NoDowngrade drops the edges leading to a lower version. Releases whose
// version does not parse keep their edges.
func NoDowngrade() Filter {
	return func(g *graph.Graph, _ query.ClientQuery) *graph.Graph {
		versions := make([]*semver.Version, g.Len())
		for i, r := range g.Releases() {
			if v, err := semver.NewVersion(r.Version); err == nil {
				versions[i] = v
			}
		}

		return g.Subgraph(nil, func(e graph.Edge) bool {
			from, to := versions[e.From], versions[e.To]
			if from == nil || to == nil {
				return true
			}

			return !to.LessThan(from)
		})
	}
}
