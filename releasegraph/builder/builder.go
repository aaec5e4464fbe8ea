/*
	builder package turns raw image metadata into a release upgrade graph.

	Every tag becomes a release keyed by its semantic version (taken from the
	<prefix>.release.version label or the tag name). Edges are derived from
	the <prefix>.previous.{add,remove} and <prefix>.next.{add,remove} labels
	which hold comma-separated version lists; removals are applied after all
	additions. Entries that cannot be parsed are skipped individually.
*/

package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/releasegraph/graph"
)

// Stats summarizes a single derivation pass.
type Stats struct {
	Tags             int
	Releases         int
	Edges            int
	MalformedEntries int
	RemovedReleases  int
	DroppedEdges     int
}

// Loader drives a metadata source and derives a graph from its output. it
// satisfies the refresher.Loader interface.
type Loader struct {
	config Config
	keys   labelKeys
}

// New creates and returns a fully configured graph loader.
func New(config Config) (*Loader, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("graph builder: config validation failed: %w", err)
	}

	return &Loader{
		config: config,
		keys:   newLabelKeys(config.LabelPrefix),
	}, nil
}

// Load collects the repository metadata and derives a new graph. An error
// is only returned when the metadata could not be collected at all.
func (l *Loader) Load(ctx context.Context) (*graph.Graph, error) {
	tags, err := l.config.Source.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph builder: unable to collect metadata: %w", err)
	}

	g, stats := l.Derive(tags)

	malformedEntriesTotal.Add(float64(stats.MalformedEntries))
	droppedEdgesTotal.Add(float64(stats.DroppedEdges))

	l.config.Logger.WithFields(logrus.Fields{
		"tags":              stats.Tags,
		"releases":          stats.Releases,
		"edges":             stats.Edges,
		"malformed_entries": stats.MalformedEntries,
		"removed_releases":  stats.RemovedReleases,
		"dropped_edges":     stats.DroppedEdges,
	}).Debug("derived graph from metadata")

	return g, nil
}

// pendingLinks holds the link labels of a release until all releases are
// known.
type pendingLinks struct {
	version string
	labels  map[string]string
}

// Derive builds a graph out of the provided tags.
func (l *Loader) Derive(tags []metadata.Tag) (*graph.Graph, Stats) {
	stats := Stats{Tags: len(tags)}
	b := graph.NewBuilder()
	pending := make([]pendingLinks, 0, len(tags))

	for _, tag := range tags {
		release, err := l.release(tag)
		if err != nil {
			stats.MalformedEntries++
			l.config.Logger.WithFields(logrus.Fields{
				"tag": tag.Name,
				"err": err,
			}).Warn("skipping malformed entry")

			continue
		}

		if release == nil {
			stats.RemovedReleases++

			continue
		}

		if err := b.AddRelease(*release); err != nil {
			stats.MalformedEntries++
			l.config.Logger.WithFields(logrus.Fields{
				"tag": tag.Name,
				"err": err,
			}).Warn("skipping malformed entry")

			continue
		}

		pending = append(pending, pendingLinks{version: release.Version, labels: release.Labels})
	}

	// Additions must see every release before removals are applied so that
	// a removal always wins regardless of tag order.
	for _, p := range pending {
		for _, prev := range l.versionList(p.labels[l.keys.previousAdd], &stats) {
			l.addEdge(b, prev, p.version, &stats)
		}

		for _, next := range l.versionList(p.labels[l.keys.nextAdd], &stats) {
			l.addEdge(b, p.version, next, &stats)
		}
	}

	for _, p := range pending {
		for _, prev := range l.versionList(p.labels[l.keys.previousRemove], &stats) {
			b.RemoveEdge(prev, p.version)
		}

		for _, next := range l.versionList(p.labels[l.keys.nextRemove], &stats) {
			b.RemoveEdge(p.version, next)
		}
	}

	g := b.Build()
	stats.Releases = g.Len()
	stats.Edges = g.EdgeCount()

	return g, stats
}

// release converts a tag into a release. A nil release without an error
// means the tag is explicitly excluded from the graph.
func (l *Loader) release(tag metadata.Tag) (*graph.Release, error) {
	labels := make(map[string]string, len(tag.Labels)+1)
	for k, v := range tag.Labels {
		labels[k] = v
	}

	if strings.EqualFold(strings.TrimSpace(labels[l.keys.remove]), "true") {
		return nil, nil
	}

	rawVersion := strings.TrimSpace(labels[l.keys.version])
	if rawVersion == "" {
		rawVersion = tag.Name
	}

	version, err := semver.StrictNewVersion(rawVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version %q: %v", metadata.ErrMalformedTag, rawVersion, err)
	}

	if tag.Digest == "" {
		return nil, fmt.Errorf("%w: missing payload digest", metadata.ErrMalformedTag)
	}

	if _, exists := labels[l.keys.arch]; !exists && tag.Architecture != "" {
		labels[l.keys.arch] = tag.Architecture
	}

	return &graph.Release{
		Version: version.String(),
		Payload: tag.Digest,
		Labels:  labels,
	}, nil
}

func (l *Loader) addEdge(b *graph.Builder, from, to string, stats *Stats) {
	var md map[string]string
	if blocked := l.blockedFor(b, to); blocked != "" {
		md = map[string]string{graph.EdgeBlockedFor: blocked}
	}

	err := b.AddEdge(from, to, md)
	switch {
	case err == nil, errors.Is(err, graph.ErrDuplicateEdge):
		// previous.add and next.add may both declare the same edge.
	default:
		stats.DroppedEdges++
		l.config.Logger.WithFields(logrus.Fields{
			"from": from,
			"to":   to,
			"err":  err,
		}).Debug("dropping edge")
	}
}

// blockedFor returns the blocked-for label of the release pending in the
// provided builder.
func (l *Loader) blockedFor(b *graph.Builder, version string) string {
	r, ok := b.Release(version)
	if !ok {
		return ""
	}

	return strings.TrimSpace(r.Labels[l.keys.blockedFor])
}

// versionList parses a comma-separated list of versions and normalizes each
// entry. Invalid entries are dropped and counted.
func (l *Loader) versionList(raw string, stats *Stats) []string {
	var versions []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		v, err := semver.StrictNewVersion(entry)
		if err != nil {
			stats.DroppedEdges++

			continue
		}

		versions = append(versions, v.String())
	}

	return versions
}
