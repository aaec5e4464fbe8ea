package registry

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// Config defines configurations for the registry metadata source.
type Config struct {
	// URL of the container image registry [ie http://localhost:5000]. An
	// http scheme selects plain-text HTTP; a missing scheme implies https.
	Registry string

	// Name of the image repository holding the release images.
	Repository string

	// Optional path to a docker style config.json with registry credentials.
	CredentialsPath string

	// The number of concurrent workers used for fetching tag metadata.
	NumOfFetchWorkers int

	// Per-request timeout. If not specified, a default of 30 seconds will be
	// used instead.
	Timeout time.Duration

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if _, _, parseErr := config.reference(); parseErr != nil {
		err = multierror.Append(err, parseErr)
	}

	if config.Repository == "" {
		err = multierror.Append(err, fmt.Errorf("repository not provided"))
	}

	if config.NumOfFetchWorkers <= 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for fetch workers, must be > 0"))
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// reference returns the repository reference understood by the registry
// client along with whether plain HTTP must be used.
func (config *Config) reference() (string, bool, error) {
	if config.Registry == "" {
		return "", false, fmt.Errorf("registry not provided")
	}

	raw := config.Registry
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid registry URL %q: %w", config.Registry, err)
	}

	if u.Host == "" {
		return "", false, fmt.Errorf("invalid registry URL %q: missing host", config.Registry)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return "", false, fmt.Errorf("unsupported registry URL scheme: %q", u.Scheme)
	}

	return u.Host + "/" + strings.Trim(config.Repository, "/"), u.Scheme == "http", nil
}
