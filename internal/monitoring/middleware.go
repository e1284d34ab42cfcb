package monitoring

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware assigns a request id when the client did not send one.
// The id is written back on the request so later handlers and the error
// middleware see the same value.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, id)
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordRequest(c.Request.Method, route, statusCode, duration)
		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.GetHeader(RequestIDHeader), statusCode, duration)

		if duration > 5*time.Second {
			logger.SystemLogger("slow_request", fmt.Sprintf("%s %s took %s", c.Request.Method, route, duration))
		}
	}
}
