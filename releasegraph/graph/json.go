package graph

import (
	"encoding/json"
	"fmt"
)

type jsonRelease struct {
	Version  string            `json:"version"`
	Payload  string            `json:"payload"`
	Metadata map[string]string `json:"metadata"`
}

type jsonEdge struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type jsonGraph struct {
	Nodes []jsonRelease `json:"nodes"`
	Edges []jsonEdge    `json:"edges"`
}

// MarshalJSON encodes the graph into its wire format. Edges reference
// releases by version.
func (g *Graph) MarshalJSON() ([]byte, error) {
	doc := jsonGraph{
		Nodes: make([]jsonRelease, 0, g.Len()),
		Edges: make([]jsonEdge, 0, g.EdgeCount()),
	}

	if g != nil {
		for _, r := range g.releases {
			labels := r.Labels
			if labels == nil {
				labels = map[string]string{}
			}

			doc.Nodes = append(doc.Nodes, jsonRelease{
				Version:  r.Version,
				Payload:  r.Payload,
				Metadata: labels,
			})
		}

		for _, e := range g.edges {
			doc.Edges = append(doc.Edges, jsonEdge{
				From:     g.releases[e.From].Version,
				To:       g.releases[e.To].Version,
				Metadata: e.Metadata,
			})
		}
	}

	return json.Marshal(doc)
}

// UnmarshalJSON decodes a graph from its wire format. Decoding fails if the
// document violates any of the graph invariants.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc jsonGraph
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	b := NewBuilder()
	for _, n := range doc.Nodes {
		if err := b.AddRelease(Release{
			Version: n.Version,
			Payload: n.Payload,
			Labels:  n.Metadata,
		}); err != nil {
			return fmt.Errorf("decode graph: %w", err)
		}
	}

	for _, e := range doc.Edges {
		if err := b.AddEdge(e.From, e.To, e.Metadata); err != nil {
			return fmt.Errorf("decode graph: %w", err)
		}
	}

	*g = *b.Build()

	return nil
}
