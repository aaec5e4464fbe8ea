package builder

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/metadata"
)

// DefaultLabelPrefix is the label namespace read by default.
const DefaultLabelPrefix = metadata.DefaultLabelPrefix

// Config defines configurations for the graph builder.
type Config struct {
	// Source of the per-tag image metadata.
	Source metadata.Source

	// Namespace of the labels carrying graph metadata. If not specified,
	// DefaultLabelPrefix will be used instead.
	LabelPrefix string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.Source == nil {
		err = multierror.Append(err, fmt.Errorf("metadata source not provided"))
	}

	config.LabelPrefix = strings.TrimSuffix(config.LabelPrefix, ".")
	if config.LabelPrefix == "" {
		config.LabelPrefix = DefaultLabelPrefix
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
