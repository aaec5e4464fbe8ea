package refresher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/releasegraph/graph"
	"github.com/mycok/uGraph/releasegraph/snapshot"
)

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/mycok/uGraph/service/refresher Loader

// Loader produces a complete graph for a single refresh cycle.
type Loader interface {
	// Load builds a new graph. An error aborts the cycle and leaves the
	// currently published snapshot in place.
	Load(ctx context.Context) (*graph.Graph, error)
}

// Config defines configurations for the refresher service.
type Config struct {
	// Source of freshly built graphs.
	Loader Loader

	// Cache receiving every successfully built snapshot.
	Cache *snapshot.Cache

	// Optional store used to persist published snapshots and to seed the
	// cache on start-up.
	Store snapshot.Store

	// A clock instance for generating time-related events. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// The time between two refresh cycles.
	Period time.Duration

	// Name reported by the service and used as the metrics label. Defaults
	// to "refresher".
	Name string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.Loader == nil {
		err = multierror.Append(err, fmt.Errorf("graph loader not provided"))
	}

	if config.Cache == nil {
		err = multierror.Append(err, fmt.Errorf("snapshot cache not provided"))
	}

	if config.Clock == nil {
		config.Clock = clock.WallClock
	}

	if config.Period <= 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for refresh period, must be > 0"))
	}

	if config.Name == "" {
		config.Name = "refresher"
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
