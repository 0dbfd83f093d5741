package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/svcgw/apigateway/internal/observability"
	"github.com/svcgw/apigateway/internal/router"
)

// targetService resolves the route name a path would dispatch to, or
// "gateway" for gateway-owned and unmatched paths.
func targetService(table *router.Table, path string) string {
	if table == nil || router.IsGatewayOwned(path) {
		return "gateway"
	}
	if route := table.Match(path); route != nil {
		return route.Name
	}
	return "gateway"
}

// Logging returns a middleware that emits one record when a request
// arrives and one when it completes, carrying the routing decision and
// timing.
func Logging(logger observability.Logger, table *router.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		requestID := GetRequestID(c)
		clientIP := c.ClientIP()
		target := targetService(table, path)

		logger.Info("incoming request",
			observability.String("request_id", requestID),
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.String("target_service", target),
			observability.String("client_ip", clientIP),
		)

		c.Next()

		logger.Info("request completed",
			observability.String("request_id", requestID),
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.String("target_service", target),
			observability.Int("status_code", c.Writer.Status()),
			observability.Int64("duration_ms", time.Since(start).Milliseconds()),
			observability.String("client_ip", clientIP),
		)
	}
}
