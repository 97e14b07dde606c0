package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (e mapEnv) Getenv(key string) string { return e[key] }

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"API_KEY": "secret"})
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Port != 3000 || cfg.Provider != "whatsapp" || cfg.DBPath != "wabridge.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ReconnectDelay != 3*time.Second || cfg.MediaMaxBytes != 16<<20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AllowGroupMessages {
		t.Fatalf("group messages must default off")
	}
}

func TestLoadConfig_RequiresAPIKey(t *testing.T) {
	if _, err := LoadConfigFromEnv(mapEnv{}); err == nil {
		t.Fatalf("expected error without API_KEY")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"API_KEY":                 "secret",
		"PORT":                    "8080",
		"DB_PATH":                 "/tmp/b.db",
		"PROVIDER":                "fake",
		"RECONNECT_DELAY_SECONDS": "10",
		"ALLOW_GROUP_MESSAGES":    "true",
		"CHAT_CACHE_LIMIT":        "25",
		"MEDIA_MAX_BYTES":         "1024",
	})
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Port != 8080 || cfg.DBPath != "/tmp/b.db" || cfg.Provider != "fake" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ReconnectDelay != 10*time.Second || !cfg.AllowGroupMessages || cfg.ChatCacheLimit != 25 || cfg.MediaMaxBytes != 1024 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	cases := []mapEnv{
		{"API_KEY": "s", "PORT": "notanumber"},
		{"API_KEY": "s", "PORT": "70000"},
		{"API_KEY": "s", "RECONNECT_DELAY_SECONDS": "0"},
		{"API_KEY": "s", "ALLOW_GROUP_MESSAGES": "maybe"},
		{"API_KEY": "s", "CHAT_CACHE_LIMIT": "-1"},
		{"API_KEY": "s", "MEDIA_MAX_BYTES": "0"},
		{"API_KEY": "s", "REALTIME_TOKEN_EXPIRY_SECONDS": "x"},
	}
	for _, env := range cases {
		if _, err := LoadConfigFromEnv(env); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
}
