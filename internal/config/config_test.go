package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CRM_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.NotifyBackend != "memory" {
		t.Errorf("NotifyBackend = %q, want memory", cfg.NotifyBackend)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crm.yaml")
	content := []byte("http_port: \"9000\"\ntimezone: Asia/Dhaka\nnotify_backend: redis\naccess_token_ttl: 5m\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CRM_CONFIG", path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPPort != "9100" {
		t.Errorf("HTTPPort = %q, env should win over file", cfg.HTTPPort)
	}
	if cfg.Timezone != "Asia/Dhaka" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.NotifyBackend != "redis" {
		t.Errorf("NotifyBackend = %q", cfg.NotifyBackend)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.RedisDB)
	}
	if cfg.Location().String() != "Asia/Dhaka" {
		t.Errorf("Location() = %v", cfg.Location())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad timezone", key: "APP_TIMEZONE", val: "Mars/Olympus"},
		{name: "process local timezone", key: "APP_TIMEZONE", val: "Local"},
		{name: "bad backend", key: "NOTIFY_BACKEND", val: "kafka"},
		{name: "bad duration", key: "ACCESS_TOKEN_TTL", val: "soon"},
		{name: "bad redis db", key: "REDIS_DB", val: "zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CRM_CONFIG", "")
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.val)
			}
		})
	}
}
