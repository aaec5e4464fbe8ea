package main

import (
	"context"
	_ "embed"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mycok/uGraph/policy"
	"github.com/mycok/uGraph/policy/upstream"
	"github.com/mycok/uGraph/query"
	"github.com/mycok/uGraph/releasegraph/snapshot"
	"github.com/mycok/uGraph/service"
	"github.com/mycok/uGraph/service/graphapi"
	"github.com/mycok/uGraph/service/metrics"
	"github.com/mycok/uGraph/service/refresher"
)

//go:embed openapi.json
var openAPIDoc []byte

var (
	appName = "ugraph-policy-engine"
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
	app.Usage = "Re-serve an upstream upgrade graph under client policies"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "upstream",
			Value:   "http://localhost:8080/v1/graph",
			EnvVars: []string{"UPSTREAM"},
			Usage:   "URL of the upstream graph endpoint",
		},
		&cli.IntFlag{
			Name:    "period",
			Value:   30,
			EnvVars: []string{"PERIOD"},
			Usage:   "Time in seconds between two upstream fetches",
		},
		&cli.IntFlag{
			Name:    "upstream-timeout",
			Value:   30,
			EnvVars: []string{"UPSTREAM_TIMEOUT"},
			Usage:   "Timeout in seconds of a single upstream request",
		},
		&cli.StringFlag{
			Name:    "address",
			Value:   "127.0.0.1",
			EnvVars: []string{"ADDRESS"},
			Usage:   "Address on which the graph API listens",
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8081,
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
			Value:   9081,
			EnvVars: []string{"METRICS_PORT"},
			Usage:   "Port on which the metrics endpoint listens",
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
		&cli.StringFlag{
			Name:    "filters",
			Value:   policy.FilterSelectors + "," + policy.FilterBlockedEdges,
			EnvVars: []string{"FILTERS"},
			Usage:   "Ordered, comma-separated graph filters (selectors, blocked-edges, no-downgrade)",
		},
		&cli.StringFlag{
			Name:    "selector",
			Value:   policy.DefaultSelectors,
			EnvVars: []string{"SELECTOR"},
			Usage:   "Comma-separated param=label pairs used by the selectors filter",
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

	svcGroup, err := configureServices(appCtx)
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

func configureServices(appCtx *cli.Context) (service.Group, error) {
	loader, err := upstream.New(upstream.Config{
		URL:     appCtx.String("upstream"),
		Timeout: time.Duration(appCtx.Int("upstream-timeout")) * time.Second,
		Logger:  logger.WithField("component", "upstream"),
	})
	if err != nil {
		return nil, err
	}

	selectors, err := policy.ParseSelectors(appCtx.String("selector"))
	if err != nil {
		return nil, err
	}

	chain, err := policy.Build(policy.ParseNames(appCtx.String("filters")), policy.Options{
		Selectors: selectors,
	})
	if err != nil {
		return nil, err
	}

	cache := snapshot.NewCache()

	refresherSvc, err := refresher.New(refresher.Config{
		Loader: loader,
		Cache:  cache,
		Period: time.Duration(appCtx.Int("period")) * time.Second,
		Name:   "policy-engine",
		Logger: logger.WithField("service", "policy-engine"),
	})
	if err != nil {
		return nil, err
	}

	graphAPISvc, err := graphapi.New(graphapi.Config{
		Cache:           cache,
		MandatoryParams: query.ParseParamSet(appCtx.String("mandatory-client-parameters")),
		Filters:         chain,
		ListenAddr:      hostPort(appCtx.String("address"), appCtx.Int("port")),
		PathPrefix:      appCtx.String("path-prefix"),
		OpenAPI:         openAPIDoc,
		Name:            "policy-api",
		Logger:          logger.WithField("service", "policy-api"),
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

	return service.Group{metricsSvc, refresherSvc, graphAPISvc}, nil
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
