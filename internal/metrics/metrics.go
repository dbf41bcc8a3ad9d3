// Package metrics exposes the Prometheus collectors of the API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider records the service's operational metrics.
type Provider interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncIngest(mode string)
	IncFallback(operation string)
	IncCacheHits()
	IncCacheMisses()
	Handler() http.Handler
}

// PrometheusProvider implements Provider on its own registry, so several
// instances (tests, for one) never collide on registration.
type PrometheusProvider struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ingestTotal     *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// New returns a Prometheus provider, or a no-op one when disabled.
func New(enabled bool) Provider {
	if !enabled {
		return Noop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusProvider{
		registry: reg,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stats_api_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stats_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stats_api_ingest_total",
			Help: "Accepted ingests by storage mode",
		}, []string{"mode"}),

		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stats_api_fallbacks_total",
			Help: "Durable backend failures absorbed by the memory store",
		}, []string{"operation"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "stats_api_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "stats_api_cache_misses_total",
			Help: "Total number of cache misses",
		}),
	}
}

func (m *PrometheusProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *PrometheusProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *PrometheusProvider) IncIngest(mode string) {
	m.ingestTotal.WithLabelValues(mode).Inc()
}

func (m *PrometheusProvider) IncFallback(operation string) {
	m.fallbacksTotal.WithLabelValues(operation).Inc()
}

func (m *PrometheusProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *PrometheusProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *PrometheusProvider) Registry() *prometheus.Registry {
	return m.registry
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// noopMetrics is used when metrics are disabled.
type noopMetrics struct{}

// Noop returns a provider that records nothing.
func Noop() Provider { return noopMetrics{} }

func (noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (noopMetrics) IncIngest(_ string)                               {}
func (noopMetrics) IncFallback(_ string)                             {}
func (noopMetrics) IncCacheHits()                                    {}
func (noopMetrics) IncCacheMisses()                                  {}
func (noopMetrics) Handler() http.Handler                            { return http.NotFoundHandler() }
