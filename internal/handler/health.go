package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wabridge/internal/session"
)

type HealthHandler struct {
	Manager   *session.Manager
	StartedAt time.Time
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"activeSessions": h.Manager.ActiveCount(),
		"uptime":         int64(time.Since(h.StartedAt).Seconds()),
	})
}
