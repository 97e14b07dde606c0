package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wabridge/internal/auth"
)

type TokenHandler struct {
	TokenConfig auth.TokenConfig
}

// Mint exchanges the shared secret (already checked by middleware) for a
// short-lived realtime token, so websocket clients need not hold the secret.
func (h *TokenHandler) Mint(c *gin.Context) {
	token, err := auth.CreateToken(auth.RealtimeScope, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresIn": int64(h.TokenConfig.Expiry.Seconds()),
	})
}
