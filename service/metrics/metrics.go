/*
	metrics package exposes the process metrics registered with the default
	prometheus registry on a dedicated listener.
*/

package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/service"
)

const metricsEndpoint = "/metrics"

// Config defines configurations for the metrics service.
type Config struct {
	// The address to listen for incoming requests.
	ListenAddr string

	// Gatherer whose metrics are exposed. Defaults to the default
	// prometheus registry.
	Gatherer prometheus.Gatherer

	// How long in-flight scrapes may take to complete on shutdown.
	// Defaults to service.DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address has not been specified"))
	}

	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = service.DefaultShutdownTimeout
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Service serves prometheus metrics. it satisfies the service.Service
// interface.
type Service struct {
	config Config
	router *chi.Mux
}

// New creates and returns a fully configured metrics service.
func New(config Config) (*Service, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("metrics service: config validation failed: %w", err)
	}

	svc := &Service{
		config: config,
		router: chi.NewRouter(),
	}

	svc.router.Method(http.MethodGet, metricsEndpoint, promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))

	return svc, nil
}

// Name returns the name of the service.
func (svc *Service) Name() string { return "metrics" }

// ServeHTTP dispatches a request to the metrics endpoint.
func (svc *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.router.ServeHTTP(w, r)
}

// Run executes the service and blocks until the context gets cancelled
// or an error occurs.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.config.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	svc.config.Logger.WithField("addr", svc.config.ListenAddr).Info("started service")

	return service.ServeHTTP(ctx, l, svc.router, svc.config.ShutdownTimeout)
}
