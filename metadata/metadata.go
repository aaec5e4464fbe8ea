/*
	metadata package describes the image metadata that the graph builder
	consumes and the Source interface implemented by metadata providers such
	as container registries and label APIs.
*/

package metadata

import (
	"context"
	"errors"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/uGraph/metadata Source

// DefaultLabelPrefix is the label namespace used to encode graph metadata
// on release images.
const DefaultLabelPrefix = "io.openshift.upgrades.graph"

// ErrMalformedTag is used to report tags whose metadata cannot be turned
// into a release.
var ErrMalformedTag = errors.New("malformed tag")

// Tag holds the metadata collected for a single image tag.
type Tag struct {
	Name         string            // Tag name within the repository
	Digest       string            // Manifest digest [ie sha256:...]
	Architecture string            // Image platform architecture if known
	Labels       map[string]string // Image labels
}

// Source should be implemented by types that enumerate image metadata for
// a configured repository.
type Source interface {
	// Tags returns the metadata of every usable tag. A returned error means
	// the collection failed as a whole and no partial result must be used.
	Tags(ctx context.Context) ([]Tag, error)
}

// SourceFunc serves as an adapter that allows the use of normal functions
// as Source instances.
type SourceFunc func(ctx context.Context) ([]Tag, error)

// Tags calls f(ctx).
func (f SourceFunc) Tags(ctx context.Context) ([]Tag, error) {
	return f(ctx)
}
