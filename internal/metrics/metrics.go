// Package metrics exposes process, HTTP and cache metrics in the Prometheus
// format. Counters kept elsewhere as atomics are read lazily through
// CounterFunc and GaugeFunc collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"susu/internal/cache"
)

const namespace = "susu"

type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

// New creates a registry with Go runtime and process collectors plus the
// request metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events handled by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.events,
	)

	started := time.Now()
	m.GaugeFunc("uptime_seconds", "Seconds since the process started.", nil, func() float64 {
		return time.Since(started).Seconds()
	})
	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveEvent counts one consumed or published domain event.
func (m *Metrics) ObserveEvent(eventType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

// CounterFunc registers a counter whose value is read from fn on scrape.
func (m *Metrics) CounterFunc(name, help string, labels prometheus.Labels, fn func() float64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, fn))
}

// GaugeFunc registers a gauge whose value is read from fn on scrape.
func (m *Metrics) GaugeFunc(name, help string, labels prometheus.Labels, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, fn))
}

// RegisterCache exposes the hit, miss and invalidation counters and the
// current size of a read-through cache.
func (m *Metrics) RegisterCache(name string, c *cache.ReadThrough) {
	labels := prometheus.Labels{"cache": name}
	stats := c.Stats()
	m.CounterFunc("cache_hits_total", "Read-through cache hits.", labels, func() float64 {
		return float64(stats.Hits.Load())
	})
	m.CounterFunc("cache_misses_total", "Read-through cache misses.", labels, func() float64 {
		return float64(stats.Misses.Load())
	})
	m.CounterFunc("cache_invalidations_total", "Entity invalidations.", labels, func() float64 {
		return float64(stats.Invalidations.Load())
	})
	m.GaugeFunc("cache_entries", "Current cache entries.", labels, func() float64 {
		return float64(c.Size())
	})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
