package graph

import "errors"

var (
	// ErrUnknownRelease is returned when an edge references a release
	// version that is not part of the graph.
	ErrUnknownRelease = errors.New("unknown release")

	// ErrDuplicateRelease is returned when a release version is added twice.
	ErrDuplicateRelease = errors.New("duplicate release")

	// ErrDuplicateEdge is returned when an edge between the same pair of
	// releases is added twice.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrSelfEdge is returned when an edge originates and terminates at the
	// same release.
	ErrSelfEdge = errors.New("self edge")

	// ErrInvalidRelease is returned for releases without a version.
	ErrInvalidRelease = errors.New("invalid release")
)
