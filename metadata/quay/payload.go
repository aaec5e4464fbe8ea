package quay

import (
	"context"
	"sync"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/pipeline"
)

var (
	_ pipeline.Payload = (*labelPayload)(nil)

	payloadPool = sync.Pool{
		New: func() interface{} {
			return new(labelPayload)
		},
	}
)

// labelPayload carries a tag and its position in the wrapped source output.
type labelPayload struct {
	Index int
	Tag   metadata.Tag
}

// MarkAsProcessed resets the payload and returns it to the pool.
func (p *labelPayload) MarkAsProcessed() {
	p.Index = 0
	p.Tag = metadata.Tag{}

	payloadPool.Put(p)
}

var _ pipeline.Source = (*tagSource)(nil)

type tagSource struct {
	tags  []metadata.Tag
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
	p := payloadPool.Get().(*labelPayload)
	p.Index = s.index - 1
	p.Tag = s.tags[p.Index]

	return p
}

func (s *tagSource) Error() error { return nil }

var _ pipeline.Sink = (*orderedSink)(nil)

// orderedSink stores every decorated tag at its original position.
type orderedSink struct {
	tags []metadata.Tag
}

func (s *orderedSink) Consume(_ context.Context, p pipeline.Payload) error {
	payload := p.(*labelPayload)
	s.tags[payload.Index] = payload.Tag

	return nil
}
