package builder

import "github.com/prometheus/client_golang/prometheus"

var (
	malformedEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ugraph_builder_malformed_entries_total",
			Help: "Number of image tags skipped because their metadata could not be turned into a release.",
		},
	)
	droppedEdgesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ugraph_builder_dropped_edges_total",
			Help: "Number of derived edges dropped because they referenced unknown releases or were invalid.",
		},
	)
)

func init() {
	prometheus.MustRegister(malformedEntriesTotal, droppedEdgesTotal)
}
