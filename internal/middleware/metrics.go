package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusrec/records-api/internal/service"
)

// Metrics returns middleware recording request counts and latencies.
// The scrape endpoint itself is excluded so dashboards are not dominated
// by the scraper's own traffic.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		// Unmatched routes report their template as "unknown" to keep
		// the path label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
