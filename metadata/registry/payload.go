package registry

import (
	"context"
	"sync"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/pipeline"
)

var (
	_ pipeline.Payload = (*tagPayload)(nil)

	payloadPool = sync.Pool{
		New: func() interface{} {
			return new(tagPayload)
		},
	}
)

type tagPayload struct {
	Tag          string            // populated by the input source.
	Digest       string            // populated by the manifest fetcher.
	Architecture string            // populated by the manifest fetcher.
	Labels       map[string]string // populated by the manifest fetcher.
}

// MarkAsProcessed resets the payload and returns it to the pool.
func (p *tagPayload) MarkAsProcessed() {
	p.Tag = ""
	p.Digest = ""
	p.Architecture = ""
	p.Labels = nil

	payloadPool.Put(p)
}

// Static and compile-time check to ensure tagSource implements
// pipeline.Source interface.
var _ pipeline.Source = (*tagSource)(nil)

// tagSource feeds the listed tag names into the pipeline.
type tagSource struct {
	tags  []string
	index int
}

func (s *tagSource) Next(ctx context.Context) bool {
	if s.index >= len(s.tags) || ctx.Err() != nil {
		return false
	}
	s.index++

	return true
}

func (s *tagSource) Payload() pipeline.Payload {
	p := payloadPool.Get().(*tagPayload)
	p.Tag = s.tags[s.index-1]

	return p
}

func (s *tagSource) Error() error { return nil }

// Static and compile-time check to ensure collectingSink implements
// pipeline.Sink interface.
var _ pipeline.Sink = (*collectingSink)(nil)

// collectingSink copies every payload that reaches the end of the pipeline
// into a metadata.Tag. The sink is only ever used by a single goroutine.
type collectingSink struct {
	tags []metadata.Tag
}

func (s *collectingSink) Consume(_ context.Context, p pipeline.Payload) error {
	payload := p.(*tagPayload)
	s.tags = append(s.tags, metadata.Tag{
		Name:         payload.Tag,
		Digest:       payload.Digest,
		Architecture: payload.Architecture,
		Labels:       payload.Labels,
	})

	return nil
}
