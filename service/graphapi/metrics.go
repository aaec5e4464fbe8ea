package graphapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var httpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ugraph_http_requests_total",
		Help: "Number of handled graph API requests by status code.",
	},
	[]string{"service", "code"},
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
}

// countRequests records the status code of every response.
func countRequests(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			httpRequestsTotal.WithLabelValues(name, strconv.Itoa(status)).Inc()
		})
	}
}
