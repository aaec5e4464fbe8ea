/*
	policy package implements the request-time graph filters. A Chain is an
	ordered list of pure filters; every filter returns a subgraph of its
	input so the output of a chain is always a subgraph of the served graph.
*/

package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/query"
	"github.com/mycok/uGraph/releasegraph/graph"
)

// Names of the built-in filters.
const (
	FilterSelectors    = "selectors"
	FilterBlockedEdges = "blocked-edges"
	FilterNoDowngrade  = "no-downgrade"
)

// DefaultSelectors maps the channel and arch query parameters to the
// release labels carrying them, in the format read by ParseSelectors.
const DefaultSelectors = "channel=" + metadata.DefaultLabelPrefix + ".release.channels," +
	"arch=" + metadata.DefaultLabelPrefix + ".release.arch"

// Filter narrows a graph for the client that issued query q. Filters must
// not mutate their input.
type Filter func(g *graph.Graph, q query.ClientQuery) *graph.Graph

// Chain applies its filters in order.
type Chain []Filter

// Apply runs g through every filter of the chain.
func (c Chain) Apply(g *graph.Graph, q query.ClientQuery) *graph.Graph {
	for _, f := range c {
		g = f(g, q)
	}

	return g
}

// Options configures the built-in filters.
type Options struct {
	// Maps a client query parameter to the release label it selects on.
	Selectors map[string]string
}

// Build returns the chain formed by the named filters in the given order.
func Build(names []string, opts Options) (Chain, error) {
	var (
		chain Chain
		err   error
	)

	for _, name := range names {
		switch name {
		case FilterSelectors:
			chain = append(chain, Selectors(opts.Selectors))
		case FilterBlockedEdges:
			chain = append(chain, BlockedEdges())
		case FilterNoDowngrade:
			chain = append(chain, NoDowngrade())
		default:
			err = multierror.Append(err, fmt.Errorf("unknown filter %q", name))
		}
	}

	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	return chain, nil
}

// ParseNames splits a comma-separated filter list. Blank entries are
// ignored.
func ParseNames(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	return names
}

// ParseSelectors parses a comma-separated list of param=labelKey pairs.
func ParseSelectors(raw string) (map[string]string, error) {
	selectors := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}

		param, key, ok := strings.Cut(entry, "=")
		param, key = strings.TrimSpace(param), strings.TrimSpace(key)
		if !ok || param == "" || key == "" {
			return nil, fmt.Errorf("policy: invalid selector %q, expected param=label", entry)
		}

		if _, exists := selectors[param]; exists {
			return nil, fmt.Errorf("policy: duplicate selector for parameter %q", param)
		}

		selectors[param] = key
	}

	return selectors, nil
}

// sortedParams returns the selector parameters in a stable order.
func sortedParams(selectors map[string]string) []string {
	params := make([]string, 0, len(selectors))
	for p := range selectors {
		params = append(params, p)
	}
	sort.Strings(params)

	return params
}

// listContains reports whether the comma-separated list contains value.
func listContains(list, value string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == value {
			return true
		}
	}

	return false
}
