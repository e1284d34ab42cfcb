package security

import (
	"context"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SecurityConfig holds request guard settings
type SecurityConfig struct {
	AllowedOrigins []string
	EnableHSTS     bool
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Middleware returns the guards applied to every route
func (sc SecurityConfig) Middleware() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		SecurityHeadersMiddleware(sc.EnableHSTS),
		CORSMiddleware(sc.AllowedOrigins),
	}
}

// BodyGuards returns the guards for routes that accept a JSON body and do
// upstream work within RequestTimeout. A zero timeout leaves the context alone.
func (sc SecurityConfig) BodyGuards() []gin.HandlerFunc {
	guards := []gin.HandlerFunc{
		ValidateContentType(),
		BodyLimit(sc.MaxBodyBytes),
	}
	if sc.RequestTimeout > 0 {
		guards = append(guards, RequestTimeout(sc.RequestTimeout))
	}
	return guards
}

// CORSMiddleware allows the configured browser origins to call the API
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins

	return cors.New(cfg)
}

// ValidateContentType rejects request bodies that are not JSON
func ValidateContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}

		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "application/json" {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error":    "Content-Type must be application/json",
				"category": "validation",
			})
			return
		}

		c.Next()
	}
}

// BodyLimit caps how many request body bytes handlers may read
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":    "Request body too large",
				"category": "validation",
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// RequestTimeout bounds the request context. Not for streaming routes.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Timeout", strconv.Itoa(int(timeout.Seconds())))

		c.Next()
	}
}
