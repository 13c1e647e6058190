package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	roleResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_role_resolutions_total",
		Help: "Session role resolutions by resolved role and the record source that matched.",
	}, []string{"role", "source"})

	lookupFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_lookup_failures_total",
		Help: "Profile lookups that failed with a store error, by lookup source.",
	}, []string{"source"})

	activeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_active_clients",
		Help: "Browser clients currently holding a session resolver.",
	})
)

// PrometheusMiddleware records request count and latency. Unmatched routes
// are folded into a single label to bound cardinality.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordRoleResolution counts a finished lookup chain. source is the name of
// the strategy that matched, or "none".
func RecordRoleResolution(role, source string) {
	roleResolutionsTotal.WithLabelValues(role, source).Inc()
}

// RecordLookupFailure counts a store error raised by a lookup strategy.
func RecordLookupFailure(source string) {
	lookupFailuresTotal.WithLabelValues(source).Inc()
}

// SetActiveClients publishes the size of the client registry.
func SetActiveClients(n int) {
	activeClients.Set(float64(n))
}
