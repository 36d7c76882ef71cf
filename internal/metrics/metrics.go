package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger and HTTP metrics.
var (
	// LedgerOps counts ledger operations by kind and outcome
	// (ok, policy, not_found, error).
	LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftvault_ledger_operations_total",
		Help: "Ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})

	// RewardPoints counts loyalty points granted by reward type.
	RewardPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftvault_reward_points_total",
		Help: "Loyalty points granted by reward type.",
	}, []string{"type"})

	// httpRequests counts HTTP requests by method, route and status.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftvault_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// httpDuration observes request latency by route.
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "giftvault_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// GinMiddleware records request counts and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
