package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/svcgw/apigateway/internal/observability"
)

// Recovery returns a middleware that recovers from panics so a single
// failing request can never take the process down.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					observability.String("request_id", GetRequestID(c)),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.Any("error", err),
					observability.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
