// Package observability wraps Prometheus for the context services: a
// per-service registry, HTTP and messaging instrumentation, and health
// endpoints.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chiro/erp/internal/platform/config"
)

// Registry is a Prometheus registry whose metrics share a namespace and a
// constant service label.
type Registry struct {
	reg        *prometheus.Registry
	registerer prometheus.Registerer
	namespace  string
	service    string
}

// NewRegistry creates a registry with the Go runtime and process
// collectors already registered.
func NewRegistry(cfg config.MetricsConfig, service string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "erp"
	}
	return &Registry{
		reg:        reg,
		registerer: prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, reg),
		namespace:  namespace,
		service:    service,
	}
}

// Namespace returns the metric name prefix.
func (r *Registry) Namespace() string { return r.namespace }

// Service returns the constant service label value.
func (r *Registry) Service() string { return r.service }

// Registerer registers collectors with the service label attached.
func (r *Registry) Registerer() prometheus.Registerer { return r.registerer }

// Gatherer exposes the underlying registry for tests and scraping.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// MustRegister registers collectors, panicking on duplicates.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registerer.MustRegister(cs...)
}

// CounterVec creates and registers a namespaced counter.
func (r *Registry) CounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	r.MustRegister(c)
	return c
}

// HistogramVec creates and registers a namespaced histogram.
func (r *Registry) HistogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	r.MustRegister(h)
	return h
}

// Gauge creates and registers a namespaced gauge.
func (r *Registry) Gauge(subsystem, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	r.MustRegister(g)
	return g
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
