package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/metadata/quay"
	"github.com/mycok/uGraph/metadata/registry"
	"github.com/mycok/uGraph/policy"
	"github.com/mycok/uGraph/query"
	"github.com/mycok/uGraph/releasegraph/builder"
	"github.com/mycok/uGraph/releasegraph/snapshot"
	"github.com/mycok/uGraph/releasegraph/store/cdb"
	"github.com/mycok/uGraph/releasegraph/store/memory"
	"github.com/mycok/uGraph/service"
	"github.com/mycok/uGraph/service/graphapi"
	"github.com/mycok/uGraph/service/metrics"
	"github.com/mycok/uGraph/service/refresher"
)

var (
	appName = "ugraph-graph-builder"
	appSHA  = "latest-app-git-sha" // Populated by the compiler at the linking stage.
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSHA,
		"host": host,
	})

	if err := configureAppEnv().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")
		_ = os.Stderr.Sync()

		os.Exit(1)
	}
}

func configureAppEnv() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSHA
	app.Usage = "Build the release upgrade graph from registry metadata and serve it"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "registry",
			Value:   "http://localhost:5000",
			EnvVars: []string{"REGISTRY"},
			Usage:   "URL of the container image registry",
		},
		&cli.StringFlag{
			Name:    "repository",
			Value:   "openshift",
			EnvVars: []string{"REPOSITORY"},
			Usage:   "Name of the image repository holding the release images",
		},
		&cli.IntFlag{
			Name:    "period",
			Value:   30,
			EnvVars: []string{"PERIOD"},
			Usage:   "Time in seconds between two graph refreshes",
		},
		&cli.StringFlag{
			Name:    "address",
			Value:   "127.0.0.1",
			EnvVars: []string{"ADDRESS"},
			Usage:   "Address on which the graph API listens",
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			EnvVars: []string{"PORT"},
			Usage:   "Port on which the graph API listens",
		},
		&cli.StringFlag{
			Name:    "metrics-address",
			Value:   "127.0.0.1",
			EnvVars: []string{"METRICS_ADDRESS"},
			Usage:   "Address on which the metrics endpoint listens",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Value:   9080,
			EnvVars: []string{"METRICS_PORT"},
			Usage:   "Port on which the metrics endpoint listens",
		},
		&cli.StringFlag{
			Name:    "credentials-file",
			EnvVars: []string{"CREDENTIALS_FILE"},
			Usage:   "Path to a docker config.json with registry credentials",
		},
		&cli.StringFlag{
			Name:    "path-prefix",
			EnvVars: []string{"PATH_PREFIX"},
			Usage:   "Prefix applied to every graph API route",
		},
		&cli.StringFlag{
			Name:    "mandatory-client-parameters",
			EnvVars: []string{"MANDATORY_CLIENT_PARAMETERS"},
			Usage:   "Comma-separated query parameters every graph request must carry",
		},
		&cli.BoolFlag{
			Name:    "disable-quay-api-metadata",
			EnvVars: []string{"DISABLE_QUAY_API_METADATA"},
			Usage:   "Do not merge labels served by the quay label API",
		},
		&cli.StringFlag{
			Name:    "quay-api-base",
			Value:   quay.DefaultAPIBase,
			EnvVars: []string{"QUAY_API_BASE"},
			Usage:   "Base URL of the quay API",
		},
		&cli.StringFlag{
			Name:    "quay-label-filter",
			Value:   quay.DefaultLabelFilter,
			EnvVars: []string{"QUAY_LABEL_FILTER"},
			Usage:   "Label key filter applied to quay API label lookups",
		},
		&cli.StringFlag{
			Name:    "quay-manifestref-key",
			Value:   quay.DefaultManifestRefKey,
			EnvVars: []string{"QUAY_MANIFESTREF_KEY"},
			Usage:   "Label holding the manifest reference used for quay API lookups",
		},
		&cli.StringFlag{
			Name:    "quay-api-credentials-path",
			EnvVars: []string{"QUAY_API_CREDENTIALS_PATH"},
			Usage:   "Path to a file containing a quay API token",
		},
		&cli.IntFlag{
			Name:    "num-fetch-workers",
			Value:   8,
			EnvVars: []string{"NUM_FETCH_WORKERS"},
			Usage:   "Number of concurrent registry and quay API metadata fetchers",
		},
		&cli.StringFlag{
			Name:    "selector",
			Value:   policy.DefaultSelectors,
			EnvVars: []string{"SELECTOR"},
			Usage:   "Comma-separated param=label pairs used to narrow the graph per request",
		},
		&cli.StringFlag{
			Name:    "snapshot-store-uri",
			EnvVars: []string{"SNAPSHOT_STORE_URI"},
			Usage: "URI for the snapshot store used to warm start the graph API; empty disables persistence. " +
				"Only postgresql://user@host:26257/ugraph?sslmode=disable survives a restart, in-memory:// does not",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
			Usage:   "Logging level (trace, debug, info, warn, error)",
		},
	}

	app.Action = execute

	return app
}

func execute(appCtx *cli.Context) error {
	level, err := logrus.ParseLevel(appCtx.String("log-level"))
	if err != nil {
		return err
	}
	logger.Logger.SetLevel(level)

	store, err := getSnapshotStore(appCtx.String("snapshot-store-uri"))
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	if store == nil {
		logger.Info("no snapshot store configured, graph will not survive restarts")
	}

	svcGroup, err := configureServices(appCtx, store)
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)

		select {
		case s := <-signalChan:
			logger.WithField("signal", s.String()).Info("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	if err := svcGroup.Execute(ctx); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}

func configureServices(appCtx *cli.Context, store snapshot.Store) (service.Group, error) {
	var src metadata.Source

	regSrc, err := registry.New(registry.Config{
		Registry:          appCtx.String("registry"),
		Repository:        appCtx.String("repository"),
		CredentialsPath:   appCtx.String("credentials-file"),
		NumOfFetchWorkers: appCtx.Int("num-fetch-workers"),
		Logger:            logger.WithField("component", "registry"),
	})
	if err != nil {
		return nil, err
	}
	src = regSrc

	if !appCtx.Bool("disable-quay-api-metadata") {
		quaySrc, err := quay.New(quay.Config{
			Source:         regSrc,
			APIBase:        appCtx.String("quay-api-base"),
			Repository:     appCtx.String("repository"),
			LabelFilter:    appCtx.String("quay-label-filter"),
			ManifestRefKey: appCtx.String("quay-manifestref-key"),
			TokenPath:      appCtx.String("quay-api-credentials-path"),
			NumOfWorkers:   appCtx.Int("num-fetch-workers"),
			Logger:         logger.WithField("component", "quay"),
		})
		if err != nil {
			return nil, err
		}
		src = quaySrc
	}

	loader, err := builder.New(builder.Config{
		Source: src,
		Logger: logger.WithField("component", "graph-builder"),
	})
	if err != nil {
		return nil, err
	}

	selectors, err := policy.ParseSelectors(appCtx.String("selector"))
	if err != nil {
		return nil, err
	}

	cache := snapshot.NewCache()

	refresherSvc, err := refresher.New(refresher.Config{
		Loader: loader,
		Cache:  cache,
		Store:  store,
		Period: time.Duration(appCtx.Int("period")) * time.Second,
		Name:   "graph-builder",
		Logger: logger.WithField("service", "graph-builder"),
	})
	if err != nil {
		return nil, err
	}

	graphAPISvc, err := graphapi.New(graphapi.Config{
		Cache:           cache,
		MandatoryParams: query.ParseParamSet(appCtx.String("mandatory-client-parameters")),
		Filters:         policy.Chain{policy.Selectors(selectors)},
		ListenAddr:      hostPort(appCtx.String("address"), appCtx.Int("port")),
		PathPrefix:      appCtx.String("path-prefix"),
		Name:            "graph-api",
		Logger:          logger.WithField("service", "graph-api"),
	})
	if err != nil {
		return nil, err
	}

	metricsSvc, err := metrics.New(metrics.Config{
		ListenAddr: hostPort(appCtx.String("metrics-address"), appCtx.Int("metrics-port")),
		Logger:     logger.WithField("service", "metrics"),
	})
	if err != nil {
		return nil, err
	}

	// Services stop in reverse order: the graph API drains first and
	// metrics stay scrapeable until the end.
	return service.Group{metricsSvc, refresherSvc, graphAPISvc}, nil
}

func getSnapshotStore(storeURI string) (snapshot.Store, error) {
	if storeURI == "" {
		return nil, nil
	}

	url, err := url.Parse(storeURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot store URI: %w", err)
	}

	switch url.Scheme {
	case "in-memory":
		return memory.NewInMemoryStore(), nil
	case "postgresql":
		return cdb.NewCockroachDBStore(storeURI)
	default:
		return nil, fmt.Errorf("unsupported snapshot store URI scheme: %q", url.Scheme)
	}
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
