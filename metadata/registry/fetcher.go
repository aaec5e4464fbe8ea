package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
	"oras.land/oras-go/v2/content"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/pipeline"
)

const dockerManifestListMediaType = "application/vnd.docker.distribution.manifest.list.v2+json"

// errSkipTag marks a tag whose metadata is unusable. Such tags are dropped
// without failing the collection.
var errSkipTag = errors.New("skip tag")

// manifestStore is the subset of the registry client used by the fetcher.
type manifestStore interface {
	FetchReference(ctx context.Context, reference string) (ocispec.Descriptor, io.ReadCloser, error)
	Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error)
}

// Static and compile-time check to ensure manifestFetcher implements
// pipeline.Processor interface.
var _ pipeline.Processor = (*manifestFetcher)(nil)

// manifestFetcher resolves a tag into its manifest digest and reads the
// image configuration labels.
type manifestFetcher struct {
	store  manifestStore
	logger *logrus.Entry
	onSkip func()
}

func newManifestFetcher(store manifestStore, logger *logrus.Entry, onSkip func()) *manifestFetcher {
	return &manifestFetcher{store: store, logger: logger, onSkip: onSkip}
}

// Process populates the payload with the tag metadata. Malformed tags are
// discarded; transport failures abort the pipeline.
func (f *manifestFetcher) Process(ctx context.Context, p pipeline.Payload) (pipeline.Payload, error) {
	payload := p.(*tagPayload)

	err := f.fetch(ctx, payload)
	if errors.Is(err, errSkipTag) {
		f.logger.WithFields(logrus.Fields{
			"tag": payload.Tag,
			"err": err,
		}).Warn("skipping malformed entry")

		if f.onSkip != nil {
			f.onSkip()
		}

		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", payload.Tag, err)
	}

	return payload, nil
}

func (f *manifestFetcher) fetch(ctx context.Context, payload *tagPayload) error {
	desc, rc, err := f.store.FetchReference(ctx, payload.Tag)
	if err != nil {
		return fmt.Errorf("fetch manifest: %w", err)
	}

	data, err := content.ReadAll(rc, desc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	switch desc.MediaType {
	case ocispec.MediaTypeImageIndex, dockerManifestListMediaType:
		return fmt.Errorf("%w: %w: manifest lists are not supported", errSkipTag, metadata.ErrMalformedTag)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("%w: %w: decode manifest: %v", errSkipTag, metadata.ErrMalformedTag, err)
	}

	if manifest.Config.Digest == "" {
		return fmt.Errorf("%w: %w: manifest without config", errSkipTag, metadata.ErrMalformedTag)
	}

	rc, err = f.store.Fetch(ctx, manifest.Config)
	if err != nil {
		return fmt.Errorf("fetch image config: %w", err)
	}

	data, err = content.ReadAll(rc, manifest.Config)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read image config: %w", err)
	}

	var image ocispec.Image
	if err := json.Unmarshal(data, &image); err != nil {
		return fmt.Errorf("%w: %w: decode image config: %v", errSkipTag, metadata.ErrMalformedTag, err)
	}

	payload.Digest = desc.Digest.String()
	payload.Architecture = image.Architecture
	payload.Labels = image.Config.Labels

	return nil
}
