package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"droppers-api/logx"
	"droppers-api/metrics"
)

// Observability records request metrics and logs one line per request.
func Observability(logger logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath() // route pattern, not the raw URL
		if path == "" {
			path = "unmatched"
		}
		tm := time.Since(start)
		status := c.Writer.Status()
		code := strconv.Itoa(status)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, code).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, code).Observe(tm.Seconds())

		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", path),
			logx.Int("status", status),
			logx.Duration("duration", tm),
		}
		if caller, ok := CallerFrom(c); ok {
			fields = append(fields, logx.String("user_id", caller.ID))
		}
		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

// CORS allows browser clients from any origin, or from the listed ones.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowed) == 0:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
