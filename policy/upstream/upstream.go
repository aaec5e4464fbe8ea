/*
	upstream package fetches an already built graph from another graph
	server. It is the metadata source of the policy engine.
*/

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/mycok/uGraph/releasegraph/graph"
)

const defaultTimeout = 30 * time.Second

// maxBodySize bounds the size of an upstream response.
const maxBodySize = 64 << 20

// Config defines configurations for the upstream loader.
type Config struct {
	// Graph endpoint URL. It may carry a fixed query string.
	URL string

	// HTTP client used for requests. If not specified, a client that
	// retries transient failures with Timeout is used.
	Client *http.Client

	// Request timeout for the default client. Defaults to 30 seconds.
	Timeout time.Duration

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.URL == "" {
		err = multierror.Append(err, fmt.Errorf("upstream URL not provided"))
	} else if u, parseErr := url.Parse(config.URL); parseErr != nil || u.Host == "" {
		err = multierror.Append(err, fmt.Errorf("invalid upstream URL %q", config.URL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		err = multierror.Append(err, fmt.Errorf("unsupported upstream URL scheme: %q", u.Scheme))
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	if config.Client == nil {
		config.Client = &http.Client{
			Transport: retry.NewTransport(http.DefaultTransport),
			Timeout:   config.Timeout,
		}
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Loader fetches the upstream graph. it satisfies the refresher.Loader
// interface.
type Loader struct {
	config Config
}

// New creates and returns a fully configured upstream loader.
func New(config Config) (*Loader, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("upstream: config validation failed: %w", err)
	}

	return &Loader{config: config}, nil
}

// Load retrieves and decodes the upstream graph. Any failure leaves the
// caller without a graph for this cycle.
func (l *Loader) Load(ctx context.Context) (*graph.Graph, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := l.config.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream: unexpected status %d", res.StatusCode)
	}

	g := graph.Empty()
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBodySize)).Decode(g); err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}

	l.config.Logger.WithFields(logrus.Fields{
		"releases": g.Len(),
		"edges":    g.EdgeCount(),
	}).Debug("fetched upstream graph")

	return g, nil
}
