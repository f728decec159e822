package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coinfluence",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinfluence",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coinfluence",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	pledges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinfluence",
			Subsystem: "pledges",
			Name:      "submitted_total",
			Help:      "Pledges accepted, by currency.",
		},
		[]string{"currency"},
	)

	pledgedAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinfluence",
			Subsystem: "pledges",
			Name:      "amount_total",
			Help:      "Sum of pledged amounts, by currency.",
		},
		[]string{"currency"},
	)

	lifecycleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinfluence",
			Subsystem: "lifecycle",
			Name:      "events_total",
			Help:      "Lifecycle events appended to the pledge event log.",
		},
		[]string{"event_type"},
	)

	liquidityRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinfluence",
			Subsystem: "liquidity",
			Name:      "runs_total",
			Help:      "Liquidity automation runs.",
		},
		[]string{"network", "success"},
	)

	liquidityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coinfluence",
			Subsystem: "liquidity",
			Name:      "run_duration_seconds",
			Help:      "Duration of liquidity script executions.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		},
		[]string{"network"},
	)

	viewRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinfluence",
			Subsystem: "jobs",
			Name:      "view_refreshes_total",
			Help:      "Materialized view refreshes.",
		},
		[]string{"view", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		pledges,
		pledgedAmount,
		lifecycleEvents,
		liquidityRuns,
		liquidityDuration,
		viewRefreshes,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies keyed by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		c.Next()
		httpInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordPledge counts an accepted pledge.
func RecordPledge(currency string, amount float64) {
	pledges.WithLabelValues(currency).Inc()
	pledgedAmount.WithLabelValues(currency).Add(amount)
}

// RecordEvent counts a lifecycle event.
func RecordEvent(eventType string) {
	lifecycleEvents.WithLabelValues(eventType).Inc()
}

// RecordLiquidityRun records the outcome of a liquidity script execution.
func RecordLiquidityRun(network string, success bool, duration time.Duration) {
	liquidityRuns.WithLabelValues(network, strconv.FormatBool(success)).Inc()
	liquidityDuration.WithLabelValues(network).Observe(duration.Seconds())
}

// RecordViewRefresh records a materialized view refresh attempt.
func RecordViewRefresh(view string, success bool) {
	viewRefreshes.WithLabelValues(view, strconv.FormatBool(success)).Inc()
}
