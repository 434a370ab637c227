package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks invocations handled by the development server.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   prometheus.Counter
	inFlight prometheus.Gauge
	latency  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapi",
			Name:      "requests_total",
			Help:      "Invocations started, by route.",
		}, []string{"route"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sapi",
			Name:      "errors_total",
			Help:      "Invocations that failed to emit their response.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sapi",
			Name:      "in_flight",
			Help:      "Invocations currently running.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sapi",
			Name:      "request_duration_seconds",
			Help:      "Time from environment capture to the last flushed byte.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.requests, m.errors, m.inFlight, m.latency)
	return m
}

func (m *Metrics) StartRequest(route string) {
	m.inFlight.Inc()
	m.requests.WithLabelValues(route).Inc()
}

func (m *Metrics) EndRequest(route string, latency time.Duration, err bool) {
	m.inFlight.Dec()
	if err {
		m.errors.Inc()
	}
	m.latency.WithLabelValues(route).Observe(latency.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
