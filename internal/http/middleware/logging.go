// README: Request logging and Prometheus instrumentation.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"lifton/internal/observability"
)

// Observe logs every request as structured JSON and records request
// counters and latency histograms keyed by route template, not raw path,
// so high-cardinality IDs stay out of the metric labels.
func Observe(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		class := httpStatusClass(status)
		observability.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, class).Inc()
		observability.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, class).Observe(elapsed.Seconds())

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
