package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// proxyMetrics contains Prometheus metrics for forwarding operations.
type proxyMetrics struct {
	errorsTotal     *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
}

var (
	proxyMetricsInstance *proxyMetrics
	proxyMetricsOnce     sync.Once
)

// getProxyMetrics returns the singleton proxy metrics instance,
// registering with the default registerer on first use.
func getProxyMetrics() *proxyMetrics {
	proxyMetricsOnce.Do(func() {
		proxyMetricsInstance = &proxyMetrics{
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "errors_total",
					Help:      "Total number of forwarding errors",
				},
				[]string{"route", "kind"},
			),
			backendDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "backend_duration_seconds",
					Help:      "Duration of backend requests to response start",
					Buckets: []float64{
						.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
					},
				},
				[]string{"route"},
			),
		}
	})
	return proxyMetricsInstance
}
