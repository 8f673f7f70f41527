package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userreg_http_requests_total",
			Help: "HTTP requests served, by route pattern and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userreg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// authzDecisions counts gate outcomes: allowed, denied, self or error.
	authzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userreg_authz_decisions_total",
			Help: "Authorization gate decisions by result.",
		},
		[]string{"result"},
	)

	importRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userreg_import_rows_total",
			Help: "Rows processed by bulk signup, by result.",
		},
		[]string{"result"},
	)
)

// metricsPath labels a request by its route pattern so that ids do not explode cardinality.
// Requests without a local route are gateway traffic.
func metricsPath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "gateway"
}

// observeMiddleware records request metrics and writes one structured log line per request.
func (s *Server) observeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		path := metricsPath(c)
		status := c.Writer.Status()
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())

		s.Logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"user_id", GetUserIDFromContext(c),
		)
	}
}
