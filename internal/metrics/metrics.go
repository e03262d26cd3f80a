package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Solves counts solve calls by outcome (ok, input, routing, internal)
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solve_total", Help: "Solve calls by outcome."},
		[]string{"outcome"},
	)
	// SolveDuration tracks end-to-end solve time in seconds
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Solve duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}},
		[]string{"outcome"},
	)
	// RoutingRequests counts routing provider calls by router and status
	RoutingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_requests_total", Help: "Routing provider requests by router and status."},
		[]string{"router", "status"},
	)
	// MatrixCache counts matrix cache lookups by result (hit, miss, error)
	MatrixCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "matrix_cache_total", Help: "Matrix cache lookups by result."},
		[]string{"cache", "result"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(RoutingRequests)
		Registry.MustRegister(MatrixCache)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
