package middleware

import (
	"time"

	"namaste-icd-mapper/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logRequest(c, time.Since(start))
	}
}

func logRequest(c *gin.Context, latency time.Duration) {
	attrs := []any{
		"request_id", GetRequestID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"latency_ms", latency.Milliseconds(),
	}
	if len(c.Errors) > 0 {
		attrs = append(attrs, "errors", c.Errors.String())
	}

	switch {
	case c.Writer.Status() >= 500:
		logger.Error("request", attrs...)
	case c.Writer.Status() >= 400:
		logger.Warn("request", attrs...)
	default:
		logger.Debug("request", attrs...)
	}
}
