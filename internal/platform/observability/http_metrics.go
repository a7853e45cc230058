package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request count, latency and in-flight requests per
// route template. Unmatched routes share the "unmatched" label to keep
// cardinality bounded.
func HTTPMetrics(r *Registry) gin.HandlerFunc {
	requests := r.CounterVec("http", "requests_total", "Total number of HTTP requests", "method", "route", "status")
	duration := r.HistogramVec("http", "request_duration_seconds", "HTTP request latency in seconds", nil, "method", "route")
	inFlight := r.Gauge("http", "requests_in_flight", "Number of HTTP requests being served")

	return func(c *gin.Context) {
		start := time.Now()
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requests.With(prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}).Inc()
		duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
