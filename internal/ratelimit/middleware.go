package ratelimit

import (
	"log/slog"
	"math"
	"strconv"

	apperrors "github.com/ZanzyTHEbar/approachability-meter/internal/errors"
	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware creates middleware for IP-based rate limiting
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			// Don't block requests when the limiter itself fails
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.RateLimitBlocks.Inc()
			}

			retryAfter := strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
			c.Header("Retry-After", retryAfter)

			appErr := apperrors.NewRateLimitError(retryAfter)
			appErr.RequestID = c.GetHeader("X-Request-ID")

			body := appErr.Response()
			body["retry_after"] = retryAfter
			body["reset_at"] = result.ResetAt.Unix()
			c.AbortWithStatusJSON(appErr.HTTPStatus, body)
			return
		}

		c.Next()
	}
}
