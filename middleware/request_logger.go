package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RequestLogger logs failed or slow requests. Health probes and the metrics
// scrape are skipped to keep the log readable.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		if status >= 400 {
			log.Warn().
				Str("method", c.Request.Method).
				Str("path", path).
				Int("status", status).
				Dur("duration", duration).
				Msg("Request failed")
			return
		}
		if duration > time.Second {
			log.Info().
				Str("method", c.Request.Method).
				Str("path", path).
				Int("status", status).
				Dur("duration", duration).
				Msg("Slow request")
		}
	}
}
