package quay

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/mycok/uGraph/metadata"
)

const (
	// DefaultAPIBase is the base URL of the public quay.io API.
	DefaultAPIBase = "https://quay.io/api/v1"

	// DefaultLabelFilter restricts the returned labels to the upgrade graph
	// namespace.
	DefaultLabelFilter = metadata.DefaultLabelPrefix

	// DefaultManifestRefKey names the label that may redirect the lookup to
	// a different manifest.
	DefaultManifestRefKey = metadata.DefaultLabelPrefix + ".release.manifestref"

	defaultTimeout      = 30 * time.Second
	defaultNumOfWorkers = 4
)

// Config defines configurations for the quay label decorator.
type Config struct {
	// The source whose tags get decorated.
	Source metadata.Source

	// Base URL of the quay API. Defaults to DefaultAPIBase.
	APIBase string

	// Repository in namespace/name form.
	Repository string

	// Label key filter sent with each request. Defaults to
	// DefaultLabelFilter.
	LabelFilter string

	// Label holding an alternative manifest reference. Defaults to
	// DefaultManifestRefKey.
	ManifestRefKey string

	// Optional path to a file containing an API bearer token.
	TokenPath string

	// HTTP client used for API calls. If not specified, a client that
	// retries transient failures with a 30 second timeout is used.
	Client *http.Client

	// Number of concurrent label lookups. Defaults to 4.
	NumOfWorkers int

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry

	token string
}

func (config *Config) validate() error {
	var err error

	if config.Source == nil {
		err = multierror.Append(err, fmt.Errorf("metadata source not provided"))
	}

	if config.Repository == "" {
		err = multierror.Append(err, fmt.Errorf("repository not provided"))
	}

	if config.APIBase == "" {
		config.APIBase = DefaultAPIBase
	}

	if u, parseErr := url.Parse(config.APIBase); parseErr != nil || u.Host == "" {
		err = multierror.Append(err, fmt.Errorf("invalid API base URL %q", config.APIBase))
	}
	config.APIBase = strings.TrimRight(config.APIBase, "/")

	if config.LabelFilter == "" {
		config.LabelFilter = DefaultLabelFilter
	}

	if config.ManifestRefKey == "" {
		config.ManifestRefKey = DefaultManifestRefKey
	}

	if config.TokenPath != "" {
		raw, readErr := os.ReadFile(config.TokenPath)
		if readErr != nil {
			err = multierror.Append(err, fmt.Errorf("unable to read API token: %w", readErr))
		}
		config.token = strings.TrimSpace(string(raw))
	}

	if config.Client == nil {
		config.Client = &http.Client{
			Transport: retry.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		}
	}

	if config.NumOfWorkers <= 0 {
		config.NumOfWorkers = defaultNumOfWorkers
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
