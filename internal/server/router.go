package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wabridge/internal/auth"
	"wabridge/internal/bus"
	"wabridge/internal/config"
	"wabridge/internal/handler"
	"wabridge/internal/middleware"
	"wabridge/internal/session"
)

type Deps struct {
	Config  config.Config
	Manager *session.Manager
	Bus     *bus.Bus
	Log     zerolog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	tokenCfg := auth.TokenConfig{
		Secret: deps.Config.APIKey,
		Expiry: deps.Config.RealtimeTokenExpiry,
		Issuer: "wabridge",
	}

	healthHandler := &handler.HealthHandler{Manager: deps.Manager, StartedAt: time.Now()}
	r.GET("/health", healthHandler.Health)

	protected := r.Group("/")
	protected.Use(middleware.RequireAPIKey(deps.Config.APIKey))

	tokenHandler := &handler.TokenHandler{TokenConfig: tokenCfg}
	protected.POST("/realtime/token", tokenHandler.Mint)

	sessionHandler := &handler.SessionHandler{Manager: deps.Manager}
	protected.POST("/sessions", sessionHandler.Create)
	protected.DELETE("/sessions/:id", sessionHandler.Destroy)
	protected.GET("/sessions/:id/status", sessionHandler.Status)

	pairingLimiter := middleware.NewRateLimiter(5, time.Minute)
	protected.POST("/sessions/:id/pairing-code",
		middleware.RateLimitBySession(pairingLimiter), sessionHandler.PairingCode)

	messageHandler := &handler.MessageHandler{
		Manager:       deps.Manager,
		MediaMaxBytes: deps.Config.MediaMaxBytes,
	}
	protected.GET("/sessions/:id/chats", messageHandler.Chats)
	protected.GET("/sessions/:id/chats/:chatId/messages", messageHandler.Messages)
	protected.POST("/sessions/:id/send/text", messageHandler.SendText)
	protected.POST("/sessions/:id/send/media", messageHandler.SendMedia)
	protected.POST("/sessions/:id/send/audio", messageHandler.SendAudio)

	wsHandler := &handler.WebSocketHandler{
		Bus:         deps.Bus,
		APIKey:      deps.Config.APIKey,
		TokenConfig: tokenCfg,
		Log:         deps.Log,
	}
	r.GET("/ws", wsHandler.Serve)

	return r
}
