package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kyri56xcaesar/taskhub/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags each request with an id. An inbound X-Request-ID is reused only
// when trustHeader is set.
func RequestID(trustHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := ""
		if trustHeader {
			rid = c.GetHeader(requestIDHeader)
		}
		if rid == "" {
			rid = uuid.NewString()
		}

		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), rid))
		c.Header(requestIDHeader, rid)

		c.Next()
	}
}

// RequestLogger writes one line per request. request_id and user_id come from
// the request context through the logging handler.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"url", c.Request.URL.String(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"bytes", c.Writer.Size(),
		)
	}
}
