package refresher

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ugraph_refresh_total",
			Help: "Number of completed refresh cycles by outcome.",
		},
		[]string{"service", "outcome"},
	)
	consecutiveFailures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ugraph_refresh_consecutive_failures",
			Help: "Number of refresh cycles that failed since the last successful one.",
		},
		[]string{"service"},
	)
	skippedTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ugraph_refresh_skipped_ticks_total",
			Help: "Number of timer ticks skipped because a refresh cycle was still running.",
		},
		[]string{"service"},
	)
	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ugraph_refresh_duration_seconds",
			Help:    "Duration of refresh cycles.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"service"},
	)
	graphReleases = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ugraph_graph_releases",
			Help: "Number of releases in the published graph.",
		},
		[]string{"service"},
	)
	graphEdges = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ugraph_graph_edges",
			Help: "Number of edges in the published graph.",
		},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(
		refreshTotal,
		consecutiveFailures,
		skippedTicksTotal,
		refreshDuration,
		graphReleases,
		graphEdges,
	)
}
