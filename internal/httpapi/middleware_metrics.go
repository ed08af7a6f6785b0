package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/metrics"
)

// metricsMiddleware is the gin port of the teacher's GinMetricsMiddleware
// (middlewares/metrics.go).
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(route, status, method).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration)
	}
}
