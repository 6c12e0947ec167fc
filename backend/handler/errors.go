package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gleeclub/portal/backend/pkg/logger"
	"github.com/gleeclub/portal/backend/service"
)

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {error, code} for err. Server-side failures are logged
// with the underlying cause, which never reaches the client.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)

	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "kind", kind, "error", err)
	} else {
		logger.Info(c.Request.Context(), "request rejected", "kind", kind, "error", err)
	}

	c.JSON(status, gin.H{
		"error": service.MessageOf(err),
		"code":  kind,
	})
}

func respondInvalid(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": msg,
		"code":  service.KindInvalidInput,
	})
}
