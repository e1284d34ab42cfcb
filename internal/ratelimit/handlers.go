package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the limits that apply to the requesting IP
// without consuming a token.
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute": gin.H{
					"limit":  rl.config.IPLimitPerMin,
					"burst":  rl.config.IPLimitPerMin * rl.config.BurstMultiplier,
					"period": "1 minute",
				},
			},
			"backend":   rl.backend(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func (rl *RateLimiter) backend() string {
	if rl.redisLimiter != nil {
		return "redis"
	}
	return "memory"
}
