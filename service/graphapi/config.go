package graphapi

import (
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/policy"
	"github.com/mycok/uGraph/query"
	"github.com/mycok/uGraph/releasegraph/snapshot"
	"github.com/mycok/uGraph/service"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/uGraph/service/graphapi SnapshotReader

// SnapshotReader provides read access to the currently published snapshot.
type SnapshotReader interface {
	// Current returns the latest snapshot or nil if none was published yet.
	Current() *snapshot.Snapshot
}

// Config defines configurations for the graph API service.
type Config struct {
	// Cache holding the snapshot to serve.
	Cache SnapshotReader

	// Query parameters that every request must carry.
	MandatoryParams query.ParamSet

	// Filters applied to the graph for each request, in order.
	Filters policy.Chain

	// The address to listen for incoming requests.
	ListenAddr string

	// Prefix applied to every route [ie /api/upgrades_info].
	PathPrefix string

	// How long in-flight requests may take to complete on shutdown.
	// Defaults to service.DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Optional OpenAPI document served at /v1/openapi.
	OpenAPI []byte

	// Name reported by the service and used as the metrics label. Defaults
	// to "graph-api".
	Name string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.Cache == nil {
		err = multierror.Append(err, fmt.Errorf("snapshot cache not provided"))
	}

	if config.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address has not been specified"))
	}

	if config.MandatoryParams == nil {
		config.MandatoryParams = make(query.ParamSet)
	}

	config.PathPrefix = query.ParsePathPrefix(config.PathPrefix)

	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = service.DefaultShutdownTimeout
	}

	if config.Name == "" {
		config.Name = "graph-api"
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
