package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                int
	APIKey              string
	DBPath              string
	Provider            string
	GinMode             string
	LogLevel            string
	TLSCertFile         string
	TLSKeyFile          string
	ReconnectDelay      time.Duration
	AllowGroupMessages  bool
	ChatCacheLimit      int
	MediaMaxBytes       int64
	RealtimeTokenExpiry time.Duration
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:                3000,
		DBPath:              "wabridge.db",
		Provider:            "whatsapp",
		GinMode:             "release",
		LogLevel:            "info",
		ReconnectDelay:      3 * time.Second,
		ChatCacheLimit:      100,
		MediaMaxBytes:       16 << 20,
		RealtimeTokenExpiry: 15 * time.Minute,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.APIKey = env.Getenv("API_KEY")
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("API_KEY is required")
	}

	if raw := env.Getenv("DB_PATH"); raw != "" {
		cfg.DBPath = raw
	}
	if raw := env.Getenv("PROVIDER"); raw != "" {
		cfg.Provider = raw
	}
	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("RECONNECT_DELAY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid RECONNECT_DELAY_SECONDS")
		}
		cfg.ReconnectDelay = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("ALLOW_GROUP_MESSAGES"); raw != "" {
		allow, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ALLOW_GROUP_MESSAGES")
		}
		cfg.AllowGroupMessages = allow
	}

	if raw := env.Getenv("CHAT_CACHE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid CHAT_CACHE_LIMIT")
		}
		cfg.ChatCacheLimit = limit
	}

	if raw := env.Getenv("MEDIA_MAX_BYTES"); raw != "" {
		maxBytes, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxBytes <= 0 {
			return Config{}, fmt.Errorf("invalid MEDIA_MAX_BYTES")
		}
		cfg.MediaMaxBytes = maxBytes
	}

	if raw := env.Getenv("REALTIME_TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid REALTIME_TOKEN_EXPIRY_SECONDS")
		}
		cfg.RealtimeTokenExpiry = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
