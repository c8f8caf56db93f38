package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Simulation metrics
	SimulationRuns       *prometheus.CounterVec
	SimulationDuration   *prometheus.HistogramVec
	SimulationIterations prometheus.Histogram
	SimulationWorkers    prometheus.Histogram

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	RateLimited  prometheus.Counter
}

// NewMetrics creates a registry holding the simulation, HTTP and Go runtime
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SimulationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcts_simulations_total",
				Help: "Total number of simulations by outcome",
			},
			[]string{"status"},
		),

		SimulationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcts_simulation_duration_seconds",
				Help:    "Wall-clock duration of simulations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		SimulationIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mcts_simulation_iterations",
				Help:    "Search iterations completed per simulation",
				Buckets: prometheus.ExponentialBuckets(10, 10, 6),
			},
		),

		SimulationWorkers: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mcts_simulation_workers",
				Help:    "Root-parallel workers used per simulation",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcts_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mcts_http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		m.SimulationRuns,
		m.SimulationDuration,
		m.SimulationIterations,
		m.SimulationWorkers,
		m.HTTPRequests,
		m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRun records one finished simulation.
func (m *Metrics) ObserveRun(status string, iterations uint64, workers int, elapsed time.Duration) {
	m.SimulationRuns.WithLabelValues(status).Inc()
	m.SimulationDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	if iterations > 0 {
		m.SimulationIterations.Observe(float64(iterations))
	}
	if workers > 0 {
		m.SimulationWorkers.Observe(float64(workers))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by matched route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
