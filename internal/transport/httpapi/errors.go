package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"MarketNewsroom/internal/domain"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsClientError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error, extra gin.H) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	body := gin.H{"success": false, "message": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": message})
}
