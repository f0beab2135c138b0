package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UC_CONFIG_HOME", dir)
}

func TestLoadAppliesDefaults(t *testing.T) {
	writeConfig(t, `{
		"server": {
			"url": "http://jf.local:8096",
			"username": "maria",
			"password": "secret"
		}
	}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.MinVersion != "10.8.0" {
		t.Errorf("MinVersion = %q", cfg.Server.MinVersion)
	}
	if cfg.Poll.Interval != 3 || cfg.Poll.GraceWindow != 90 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Poll.ActiveWithinSeconds != 960 {
		t.Errorf("ActiveWithinSeconds = %d", cfg.Poll.ActiveWithinSeconds)
	}
	if cfg.Health.Interval != 30 || cfg.Health.FailureThreshold != 3 {
		t.Errorf("health = %+v", cfg.Health)
	}
	if cfg.Health.BackoffBase != 5 || cfg.Health.BackoffCap != 300 {
		t.Errorf("backoff = %d/%d", cfg.Health.BackoffBase, cfg.Health.BackoffCap)
	}
	if !cfg.Push.Enabled {
		t.Error("push disabled by default")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9090 || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}

	if got := cfg.Poll.IntervalDuration(); got != 3*time.Second {
		t.Errorf("IntervalDuration = %v", got)
	}
	if got := cfg.Health.BackoffCapDuration(); got != 300*time.Second {
		t.Errorf("BackoffCapDuration = %v", got)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	writeConfig(t, `{
		"server": {
			"url": "https://jf.example.com",
			"username": "maria",
			"password": "secret",
			"minVersion": "10.9.0"
		},
		"poll": {"interval": 5, "graceWindow": 120},
		"push": {"enabled": false},
		"log": {"level": "debug"}
	}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.MinVersion != "10.9.0" {
		t.Errorf("MinVersion = %q", cfg.Server.MinVersion)
	}
	if cfg.Poll.Interval != 5 || cfg.Poll.GraceWindow != 120 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Push.Enabled {
		t.Error("push still enabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	writeConfig(t, `{
		"server": {
			"url": "http://jf.local:8096",
			"username": "maria",
			"password": "secret"
		}
	}`)
	t.Setenv("UC_JELLYFIN_POLL_INTERVAL", "7")
	t.Setenv("UC_JELLYFIN_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Poll.Interval != 7 {
		t.Errorf("Interval = %d, want env override 7", cfg.Poll.Interval)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q, want env override warn", cfg.Log.Level)
	}
}

func TestLoadWithoutFileUsesEnvironment(t *testing.T) {
	t.Setenv("UC_CONFIG_HOME", t.TempDir())
	t.Setenv("UC_JELLYFIN_SERVER_URL", "http://jf.local:8096")
	t.Setenv("UC_JELLYFIN_USERNAME", "maria")
	t.Setenv("UC_JELLYFIN_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.URL != "http://jf.local:8096" || cfg.Server.Username != "maria" {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	writeConfig(t, `{"server": {"url": "http://jf.local:8096"}}`)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "username") {
		t.Fatalf("error = %v, want missing-username validation failure", err)
	}
}

func validConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{URL: "http://jf.local:8096", Username: "u", Password: "p"},
		Poll:   PollConfig{Interval: 3, GraceWindow: 90, RequestTimeout: 10, ActiveWithinSeconds: 960},
		Health: HealthConfig{Interval: 30, FailureThreshold: 3, BackoffBase: 5, BackoffCap: 300},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", func(c *AppConfig) {}, false},
		{"missing url", func(c *AppConfig) { c.Server.URL = "" }, true},
		{"bad scheme", func(c *AppConfig) { c.Server.URL = "ftp://jf.local" }, true},
		{"no host", func(c *AppConfig) { c.Server.URL = "http://" }, true},
		{"missing password", func(c *AppConfig) { c.Server.Password = "" }, true},
		{"zero poll interval", func(c *AppConfig) { c.Poll.Interval = 0 }, true},
		{"grace below interval", func(c *AppConfig) { c.Poll.GraceWindow = 2 }, true},
		{"zero request timeout", func(c *AppConfig) { c.Poll.RequestTimeout = 0 }, true},
		{"zero failure threshold", func(c *AppConfig) { c.Health.FailureThreshold = 0 }, true},
		{"inverted backoff", func(c *AppConfig) { c.Health.BackoffCap = 1 }, true},
		{"metrics bad port", func(c *AppConfig) {
			c.Metrics.Enabled = true
			c.Metrics.Port = 70000
		}, true},
		{"metrics disabled ignores port", func(c *AppConfig) {
			c.Metrics.Enabled = false
			c.Metrics.Port = 70000
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
