/*
	quay package decorates a metadata source with labels served by the quay
	label API. Labels attached through the API take precedence over the ones
	baked into the image. Label lookups go through a retrying transport and
	run concurrently on a fixed pool of pipeline workers.
*/

package quay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/pipeline"
)

// Static and compile-time check to ensure Source implements
// metadata.Source interface.
var _ metadata.Source = (*Source)(nil)

// Source merges quay API labels into the tags of a wrapped source.
type Source struct {
	config Config
}

// New creates and returns a fully configured quay decorator.
func New(config Config) (*Source, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("quay source: config validation failed: %w", err)
	}

	return &Source{config: config}, nil
}

type labelsResponse struct {
	Labels []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"labels"`
}

// Tags returns the tags of the wrapped source with their labels extended
// by the API labels. Lookups run on a fixed pool of workers and the output
// keeps the order of the wrapped source. Any API failure fails the whole
// call.
func (s *Source) Tags(ctx context.Context) ([]metadata.Tag, error) {
	tags, err := s.config.Source.Tags(ctx)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(
		pipeline.NewFixedWorkerPool(pipeline.ProcessorFunc(s.decorate), s.config.NumOfWorkers),
	)

	sink := &orderedSink{tags: make([]metadata.Tag, len(tags))}
	if err := p.Execute(ctx, &tagSource{tags: tags}, sink); err != nil {
		return nil, fmt.Errorf("quay source: unable to fetch API labels: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("quay source: %w", err)
	}

	return sink.tags, nil
}

// decorate merges the API labels of a single tag into its image labels.
func (s *Source) decorate(ctx context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*labelPayload)
	tag := payload.Tag

	ref := tag.Labels[s.config.ManifestRefKey]
	if ref == "" {
		ref = tag.Digest
	}

	if ref == "" {
		return payload, nil
	}

	extra, err := s.fetchLabels(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", tag.Name, err)
	}

	if len(extra) == 0 {
		return payload, nil
	}

	merged := make(map[string]string, len(tag.Labels)+len(extra))
	for k, v := range tag.Labels {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	payload.Tag.Labels = merged

	s.config.Logger.WithFields(logrus.Fields{
		"tag":    tag.Name,
		"labels": len(extra),
	}).Debug("merged quay API labels")

	return payload, nil
}

func (s *Source) fetchLabels(ctx context.Context, ref string) (map[string]string, error) {
	endpoint := fmt.Sprintf(
		"%s/repository/%s/manifest/%s/labels?filter=%s",
		s.config.APIBase,
		s.config.Repository,
		url.PathEscape(ref),
		url.QueryEscape(s.config.LabelFilter),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if s.config.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.token)
	}

	res, err := s.config.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("labels request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	// A manifest unknown to quay simply carries no extra labels.
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("labels request: unexpected status %d", res.StatusCode)
	}

	var body labelsResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("labels response: %w", err)
	}

	labels := make(map[string]string, len(body.Labels))
	for _, l := range body.Labels {
		labels[l.Key] = l.Value
	}

	return labels, nil
}
