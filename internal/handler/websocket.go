package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"wabridge/internal/auth"
	"wabridge/internal/bus"
)

// WebSocketHandler is the realtime gateway: it authenticates the connection,
// tracks which session ids the client has subscribed to, and forwards only
// matching bus events.
type WebSocketHandler struct {
	Bus         *bus.Bus
	APIKey      string
	TokenConfig auth.TokenConfig
	Log         zerolog.Logger
}

type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (h *WebSocketHandler) authorize(c *gin.Context) bool {
	if key := c.Query("apiKey"); key != "" {
		return subtle.ConstantTimeCompare([]byte(key), []byte(h.APIKey)) == 1
	}
	if token := c.Query("token"); token != "" {
		claims, err := auth.VerifyToken(token, h.TokenConfig)
		return err == nil && claims.Scope == auth.RealtimeScope
	}
	return false
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	if !h.authorize(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	log := h.Log.With().Str("component", "realtime_gateway").Str("remote", c.ClientIP()).Logger()

	// One firehose subscription per connection; released on close so
	// reconnecting clients never leak subscriptions.
	sub := h.Bus.SubscribeAll()
	defer sub.Close()
	defer ws.Close()

	var mu sync.Mutex
	interest := make(map[string]struct{})

	subscribed := func(sessionID string) bool {
		mu.Lock()
		defer mu.Unlock()
		_, ok := interest[sessionID]
		return ok
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }
	defer closeDone()

	// Writer pump: forwards matching events and keeps the connection alive
	// with pings. All writes happen here, preserving per-connection order.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if !subscribed(bus.SessionID(ev.Channel)) {
					continue
				}
				ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteJSON(ev); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	ws.SetReadLimit(4 * 1024)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.SessionID == "" {
			continue
		}

		switch msg.Type {
		case "subscribe":
			mu.Lock()
			interest[msg.SessionID] = struct{}{}
			mu.Unlock()
			log.Debug().Str("session_id", msg.SessionID).Msg("Client subscribed")
		case "unsubscribe":
			mu.Lock()
			delete(interest, msg.SessionID)
			mu.Unlock()
			log.Debug().Str("session_id", msg.SessionID).Msg("Client unsubscribed")
		}
	}
}
