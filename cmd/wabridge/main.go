package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wabridge/internal/bus"
	"wabridge/internal/config"
	"wabridge/internal/provider"
	"wabridge/internal/server"
	"wabridge/internal/session"
	"wabridge/internal/store"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	gin.SetMode(cfg.GinMode)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open store")
	}
	defer st.Close()

	dialer, err := provider.Open(cfg.Provider)
	if err != nil {
		log.Fatal().Err(err).Strs("registered", provider.Drivers()).Msg("Failed to open network driver")
	}

	eventBus := bus.New()
	manager := session.NewManager(st, eventBus, dialer, log, session.Config{
		ReconnectDelay:     cfg.ReconnectDelay,
		AllowGroupMessages: cfg.AllowGroupMessages,
		ChatCacheLimit:     cfg.ChatCacheLimit,
	})

	if err := manager.RestoreAll(context.Background()); err != nil {
		log.Error().Err(err).Msg("Session restoration failed")
	}

	router := server.NewRouter(server.Deps{
		Config:  cfg,
		Manager: manager,
		Bus:     eventBus,
		Log:     log,
	})
	srv := server.NewHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("Listening")
		errCh <- server.Run(srv, cfg)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
		// Close live connections without touching durable status so
		// they restore on the next start.
		manager.Shutdown()
	}
}
