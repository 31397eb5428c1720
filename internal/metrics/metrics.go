package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pdroute/internal/buildinfo"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SolveRuns counts finished solves by termination reason and run status
	SolveRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solve_runs_total", Help: "Finished solve runs by reason and status."},
		[]string{"reason", "status"},
	)
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Wall time of a solve run.", Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}},
	)
	SolveIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solve_iterations", Help: "Tabu iterations consumed by the best seed.", Buckets: prometheus.ExponentialBuckets(10, 4, 8)},
	)
	// SolveCost is the best cost of the most recent run per tenant
	SolveCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "solve_last_cost", Help: "Best cost of the last finished run."},
		[]string{"tenant"},
	)
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "solve_runs_in_flight", Help: "Solve runs currently executing."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)

	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "pdroute_build_info", Help: "Build metadata; always 1."},
		[]string{"version", "commit"},
	)
)

// RegisterDefault registers collectors to the API registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveRuns)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SolveIterations)
		Registry.MustRegister(SolveCost)
		Registry.MustRegister(RunsInFlight)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(BuildInfo)
		BuildInfo.WithLabelValues(buildinfo.Version, buildinfo.Commit).Set(1)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
