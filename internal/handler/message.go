package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wabridge/internal/session"
)

type MessageHandler struct {
	Manager       *session.Manager
	MediaMaxBytes int64
}

func (h *MessageHandler) Chats(c *gin.Context) {
	chats, err := h.Manager.Chats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *MessageHandler) Messages(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = v
	}

	msgs := h.Manager.Messages(c.Param("id"), c.Param("chatId"), limit)
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendTextBody struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

func (h *MessageHandler) SendText(c *gin.Context) {
	var body sendTextBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" || body.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	msgID, err := h.Manager.SendText(c.Request.Context(), c.Param("id"), body.ChatID, body.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": msgID})
}

func (h *MessageHandler) SendMedia(c *gin.Context) {
	chatID := c.PostForm("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	defer file.Close()

	data, ok := h.readUpload(c, file, header.Size)
	if !ok {
		return
	}

	mimetype := header.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	msgID, err := h.Manager.SendMedia(c.Request.Context(), c.Param("id"), chatID,
		data, mimetype, header.Filename, c.PostForm("caption"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": msgID})
}

func (h *MessageHandler) SendAudio(c *gin.Context) {
	chatID := c.PostForm("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing audio"})
		return
	}
	defer file.Close()

	data, ok := h.readUpload(c, file, header.Size)
	if !ok {
		return
	}

	msgID, err := h.Manager.SendAudio(c.Request.Context(), c.Param("id"), chatID, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": msgID})
}

// readUpload enforces the size cap before buffering the upload. The extra
// LimitReader byte catches uploads whose multipart header understates the
// size.
func (h *MessageHandler) readUpload(c *gin.Context, file io.Reader, declared int64) ([]byte, bool) {
	if declared > h.MediaMaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(file, h.MediaMaxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return nil, false
	}
	if int64(len(data)) > h.MediaMaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, false
	}
	return data, true
}
