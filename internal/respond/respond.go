// Package respond writes the {status, message, data} envelope every endpoint returns.
package respond

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/taskhub/internal/apperr"
)

type Envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func OK(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Envelope{Status: true, Message: message, Data: data})
}

// Fail maps err to its HTTP status. Only server-side failures are logged above debug.
func Fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	} else {
		slog.DebugContext(c.Request.Context(), "request rejected",
			"path", c.FullPath(),
			"kind", apperr.KindOf(err).String(),
			"error", err,
		)
	}

	c.JSON(status, Envelope{Status: false, Message: apperr.Message(err)})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Status: false, Message: message})
}

func Abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Envelope{Status: false, Message: message})
}
