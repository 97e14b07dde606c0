package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wabridge/internal/session"
)

type SessionHandler struct {
	Manager *session.Manager
}

type createSessionBody struct {
	SessionID string `json:"sessionId"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var body createSessionBody
	if err := c.ShouldBindJSON(&body); err != nil || body.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.Manager.Create(c.Request.Context(), body.SessionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": body.SessionID})
}

func (h *SessionHandler) Destroy(c *gin.Context) {
	if err := h.Manager.Destroy(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SessionHandler) Status(c *gin.Context) {
	sess, active, err := h.Manager.Status(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           sess.ID,
		"status":       sess.Status,
		"phone":        sess.Phone,
		"displayName":  sess.DisplayName,
		"socketActive": active,
	})
}

type pairingCodeBody struct {
	Phone string `json:"phone"`
}

func (h *SessionHandler) PairingCode(c *gin.Context) {
	var body pairingCodeBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	code, err := h.Manager.PairingCode(c.Request.Context(), c.Param("id"), body.Phone)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "code": code})
}
