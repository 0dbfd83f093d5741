package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics contains Prometheus metrics for the inbound HTTP surface.
type httpMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var (
	httpMetricsInstance *httpMetrics
	httpMetricsOnce     sync.Once
)

// getHTTPMetrics returns the singleton HTTP metrics instance,
// registering with the default registerer on first use.
func getHTTPMetrics() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpMetricsInstance = &httpMetrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "http",
					Name:      "requests_total",
					Help:      "Total number of HTTP requests handled",
				},
				[]string{"method", "status"},
			),
			requestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "gateway",
					Subsystem: "http",
					Name:      "request_duration_seconds",
					Help:      "Duration of HTTP requests",
					Buckets: []float64{
						.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
					},
				},
				[]string{"method"},
			),
		}
	})
	return httpMetricsInstance
}

// Metrics returns a middleware that records request counts and
// durations.
func Metrics() gin.HandlerFunc {
	m := getHTTPMetrics()

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		method := c.Request.Method
		m.requestsTotal.WithLabelValues(method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
