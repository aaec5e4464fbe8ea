/*
	graphapi package serves the published upgrade graph over HTTP. Requests
	are validated against the mandatory parameter set before any graph is
	read; valid requests get the current snapshot narrowed by the configured
	filter chain.
*/

package graphapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/query"
	"github.com/mycok/uGraph/service"
)

const (
	graphEndpoint   = "/v1/graph"
	openAPIEndpoint = "/v1/openapi"

	contentTypeJSON = "application/json"
)

// Error kinds reported in error response bodies.
const (
	KindMissingParams      = "missing_params"
	KindServiceUnavailable = "service_unavailable"
	KindInvalidContentType = "invalid_content_type"
)

// errorBody is the machine-readable body of every error response.
type errorBody struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Service serves the graph endpoints. it satisfies the service.Service
// interface.
type Service struct {
	config Config
	router chi.Router
}

// New creates and returns a fully configured graph API service.
func New(config Config) (*Service, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("graph API service: config validation failed: %w", err)
	}

	svc := &Service{config: config}

	routes := func(r chi.Router) {
		r.Get(graphEndpoint, svc.serveGraph)
		if len(config.OpenAPI) > 0 {
			r.Get(openAPIEndpoint, svc.serveOpenAPI)
		}
	}

	router := chi.NewRouter()
	router.Use(countRequests(config.Name))
	if config.PathPrefix == "" {
		routes(router)
	} else {
		router.Route(config.PathPrefix, routes)
	}

	svc.router = router

	return svc, nil
}

// Name returns the name of the service.
func (svc *Service) Name() string { return svc.config.Name }

// ServeHTTP dispatches a request to the graph API routes.
func (svc *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.router.ServeHTTP(w, r)
}

// Run executes the service and blocks until the context gets cancelled
// or an error occurs. In-flight requests are drained on cancellation.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.config.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	svc.config.Logger.WithFields(logrus.Fields{
		"addr":   svc.config.ListenAddr,
		"prefix": svc.config.PathPrefix,
	}).Info("started service")
	defer svc.config.Logger.Info("stopped service")

	return service.ServeHTTP(ctx, l, svc.router, svc.config.ShutdownTimeout)
}

func (svc *Service) serveGraph(w http.ResponseWriter, r *http.Request) {
	if !acceptsJSON(r.Header.Values("Accept")) {
		svc.writeError(w, http.StatusNotAcceptable, KindInvalidContentType,
			fmt.Sprintf("only %s responses are supported", contentTypeJSON))

		return
	}

	values := r.URL.Query()
	if err := svc.config.MandatoryParams.Validate(values); err != nil {
		var vErr *query.ValidationError
		if errors.As(err, &vErr) {
			svc.config.Logger.WithField("missing", vErr.Missing).Debug("rejected graph request")
		}

		svc.writeError(w, http.StatusBadRequest, KindMissingParams, err.Error())

		return
	}

	snap := svc.config.Cache.Current()
	if snap == nil {
		svc.writeError(w, http.StatusServiceUnavailable, KindServiceUnavailable,
			"no graph has been published yet")

		return
	}

	g := svc.config.Filters.Apply(snap.Graph(), query.FromValues(values))

	data, err := json.Marshal(g)
	if err != nil {
		svc.config.Logger.WithField("err", err).Error("unable to encode graph")
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	_, _ = w.Write(data)
}

func (svc *Service) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	_, _ = w.Write(svc.config.OpenAPI)
}

func (svc *Service) writeError(w http.ResponseWriter, status int, kind, value string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Kind: kind, Value: value})
}

// acceptsJSON reports whether the Accept header values allow a JSON
// response. A missing header accepts anything.
func acceptsJSON(accept []string) bool {
	if len(accept) == 0 {
		return true
	}

	for _, header := range accept {
		for _, item := range strings.Split(header, ",") {
			mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(item))
			if err != nil {
				continue
			}

			switch mediaType {
			case contentTypeJSON, "application/*", "*/*":
				return true
			}
		}
	}

	return false
}
