package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	uploadBytes prometheus.Counter
	dumpBytes   prometheus.Counter
	rejections  *prometheus.CounterVec
}

// NewMetrics registers every collector, plus Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextcube_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nextcube_http_request_duration_seconds",
			Help:    "Time spent serving a request",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextcube_upload_bytes_total",
			Help: "Bytes stored by successful uploads",
		}),
		dumpBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextcube_dump_bytes_total",
			Help: "Bytes echoed to stdout by the dump endpoint",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextcube_body_rejections_total",
			Help: "Request bodies rejected for exceeding the size cap",
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.uploadBytes, m.dumpBytes, m.rejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observe(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}
