// Package metrics provides Prometheus metrics for the mission control server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	HeartbeatsTotal prometheus.Counter
	AgentsOnline    prometheus.Gauge
	GatewayCalls    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missionctl_requests_total",
				Help: "Total number of API requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "missionctl_request_duration_seconds",
				Help:    "API request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		HeartbeatsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "missionctl_heartbeats_total",
				Help: "Total agent heartbeats received.",
			},
		),
		AgentsOnline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "missionctl_agents_online",
				Help: "Number of agents not currently offline.",
			},
		),
		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missionctl_gateway_calls_total",
				Help: "Gateway proxy calls by action and result.",
			},
			[]string{"action", "result"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.HeartbeatsTotal)
	reg.MustRegister(m.AgentsOnline)
	reg.MustRegister(m.GatewayCalls)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGatewayCall increments the gateway call counter.
func (m *Metrics) RecordGatewayCall(action, result string) {
	m.GatewayCalls.WithLabelValues(action, result).Inc()
}

// Middleware instruments an HTTP handler, labeling by a coarse route so
// per-task IDs do not blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func routeLabel(r *http.Request) string {
	path := r.URL.Path
	for _, prefix := range []string{"/api/tasks", "/api/agents", "/api/messages", "/api/notify", "/api/activity", "/api/gateway", "/api/health", "/metrics", "/ws"} {
		if path == prefix || len(path) > len(prefix) && path[:len(prefix)+1] == prefix+"/" {
			return r.Method + " " + prefix
		}
	}
	return r.Method + " other"
}
