package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deymohit02/crypto-market-tracker/services/ratelimit"
)

const limiterSweepInterval = 10 * time.Minute

// RateLimit throttles API requests per client IP with a token bucket.
// ratePerSec is the sustained refill rate, burst the bucket capacity.
func RateLimit(ratePerSec float64, burst int) gin.HandlerFunc {
	limiter := ratelimit.New()
	if burst <= 0 {
		burst = 1
	}

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Sweep(limiterSweepInterval)
		}
	}()

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP(), float64(burst), ratePerSec) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
