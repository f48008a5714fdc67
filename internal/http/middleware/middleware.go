package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"ciphercore.app/convo/common/logger"
	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a 500 and logs it with the request's trace context.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(c.Request.Context(), "panic recovered in http handler",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// Logger logs one line per request once the handler returns. SSE requests are
// logged when the stream closes, so their duration covers the whole run.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			Component: "convo.http",
		})
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			slog.ErrorContext(ctx, "http request", attrs...)
		case status >= http.StatusBadRequest:
			slog.WarnContext(ctx, "http request", attrs...)
		default:
			slog.InfoContext(ctx, "http request", attrs...)
		}
	}
}

// TraceHeader echoes the request's trace id so clients can quote it in bug reports.
func TraceHeader(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if name != "" {
			if traceID := logger.TraceID(c.Request.Context()); traceID != "" {
				c.Header(name, traceID)
			}
		}
		c.Next()
	}
}
