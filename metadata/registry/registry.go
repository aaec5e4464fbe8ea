/*
	registry package implements a metadata.Source that scrapes an OCI
	distribution registry: it lists every tag of a repository and reads the
	manifest digest, platform and labels of each tagged image. Tags are
	fetched concurrently by a fixed pool of pipeline workers.
*/

package registry

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/pipeline"
)

// Static and compile-time check to ensure Source implements
// metadata.Source interface.
var _ metadata.Source = (*Source)(nil)

// Source collects tag metadata from a container image registry.
type Source struct {
	config Config
	repo   *remote.Repository
}

// New creates and returns a fully configured registry source.
func New(config Config) (*Source, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("registry source: config validation failed: %w", err)
	}

	ref, plainHTTP, _ := config.reference()
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("registry source: %w", err)
	}

	client := &auth.Client{
		Client: &http.Client{
			Transport: retry.NewTransport(http.DefaultTransport),
			Timeout:   config.Timeout,
		},
		Cache: auth.NewCache(),
	}

	if config.CredentialsPath != "" {
		store, err := credentials.NewFileStore(config.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("registry source: unable to load credentials: %w", err)
		}

		client.Credential = credentials.Credential(store)
	}

	repo.Client = client
	repo.PlainHTTP = plainHTTP

	return &Source{config: config, repo: repo}, nil
}

// Tags lists the repository tags and returns the metadata of every tag that
// could be read. Tags with unusable metadata are skipped; any transport
// failure fails the whole call.
func (s *Source) Tags(ctx context.Context) ([]metadata.Tag, error) {
	var names []string
	err := s.repo.Tags(ctx, "", func(tags []string) error {
		names = append(names, tags...)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry source: unable to list tags: %w", err)
	}

	var skipped int64
	fetcher := newManifestFetcher(s.repo, s.config.Logger, func() {
		atomic.AddInt64(&skipped, 1)
	})

	p := pipeline.New(
		pipeline.NewFixedWorkerPool(fetcher, s.config.NumOfFetchWorkers),
	)

	sink := new(collectingSink)
	if err := p.Execute(ctx, &tagSource{tags: names}, sink); err != nil {
		return nil, fmt.Errorf("registry source: unable to fetch tag metadata: %w", err)
	}

	// The pipeline stops silently when the context is cancelled.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("registry source: %w", err)
	}

	s.config.Logger.WithFields(logrus.Fields{
		"tags":    len(names),
		"fetched": len(sink.tags),
		"skipped": atomic.LoadInt64(&skipped),
	}).Debug("collected registry metadata")

	return sink.tags, nil
}
