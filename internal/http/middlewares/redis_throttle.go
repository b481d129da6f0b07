package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Allower is satisfied by ratelimit.RedisLimiter.
type Allower interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Throttle adapts a shared limiter into gin middleware. Limiter errors fail
// open: an unreachable redis must not take the auth endpoints down with it.
func Throttle(limiter Allower, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		cctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		allowed, retryAfter, err := limiter.Allow(cctx, key)

		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			respondRateLimited(c, retryAfter)
			return
		}

		c.Next()
	}
}
