package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wabridge/internal/session"
)

// writeError maps the session error taxonomy to HTTP at the boundary. The
// manager never returns raw provider failures; they arrive wrapped and map
// to 502.
func writeError(c *gin.Context, err error) {
	var provErr *session.ProviderError
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrAlreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrSessionNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &provErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
