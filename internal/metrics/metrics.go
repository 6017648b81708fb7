// Package metrics exposes Prometheus collectors for the HTTP surface and the speech provider.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "realty_voice"

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics owns a registry so tests and multiple servers never collide on the default one
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	audioBytesTotal         *prometheus.CounterVec
	sessionLogAppendsTotal  *prometheus.CounterVec
	websocketConnections    prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of speech provider calls",
			},
			[]string{"operation", "status"}, // status: success, error
		),
		providerRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Duration of speech provider calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		audioBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_bytes_total",
				Help:      "Total audio bytes returned to clients",
			},
			[]string{"output_format"},
		),
		sessionLogAppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_log_appends_total",
				Help:      "Total number of session log appends",
			},
			[]string{"status"},
		),
		websocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections",
				Help:      "Number of open websocket connections",
			},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.providerRequestsTotal,
		m.providerRequestDuration,
		m.audioBytesTotal,
		m.sessionLogAppendsTotal,
		m.websocketConnections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			// Let the error handler pick the status; it skips committed responses
			// when the error bubbles further up.
			if err != nil {
				c.Error(err)
			}
			code := c.Response().Status

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).Inc()
			m.httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordProviderRequest records a speech provider call
func (m *Metrics) RecordProviderRequest(operation, status string, duration time.Duration) {
	m.providerRequestsTotal.WithLabelValues(operation, status).Inc()
	m.providerRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAudioBytes counts audio delivered to a client
func (m *Metrics) RecordAudioBytes(outputFormat string, n int) {
	if n > 0 {
		m.audioBytesTotal.WithLabelValues(outputFormat).Add(float64(n))
	}
}

// RecordSessionLogAppend counts a session log write
func (m *Metrics) RecordSessionLogAppend(status string) {
	m.sessionLogAppendsTotal.WithLabelValues(status).Inc()
}

// WebsocketOpened increments the open connection gauge
func (m *Metrics) WebsocketOpened() {
	m.websocketConnections.Inc()
}

// WebsocketClosed decrements the open connection gauge
func (m *Metrics) WebsocketClosed() {
	m.websocketConnections.Dec()
}
