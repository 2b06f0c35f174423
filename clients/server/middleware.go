package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	correlationIDKey = "correlationID"
	loggerKey        = "slogLogger"
)

// correlationID makes sure every request carries an X-Correlation-ID.
func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationIDKey, id)
		c.Header("X-Correlation-ID", id)
		c.Next()
	}
}

// requestLogger stores a request-scoped logger and logs completion.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := logger.With(
			slog.String("correlation_id", c.GetString(correlationIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
		)
		c.Set(loggerKey, l)

		start := time.Now()
		c.Next()

		l.Info("request completed",
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func loggerFrom(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
