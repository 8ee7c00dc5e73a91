package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Monitor.AlertCooldown != 5*time.Minute {
		t.Errorf("AlertCooldown = %s, want 5m", cfg.Monitor.AlertCooldown)
	}
	if cfg.Monitor.WiFiConfirmTimeout != 10*time.Second {
		t.Errorf("WiFiConfirmTimeout = %s, want 10s", cfg.Monitor.WiFiConfirmTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()

	data := `
server:
  port: 9090
database:
  host: db.internal
  database: ponds
monitor:
  timezone: UTC
  alert_cooldown: 2m
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FISHDA_LOGGING_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("FISHDA_LOGGING_LEVEL") })
	t.Setenv("FISHDA_DATABASE_HOST", "env-host")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090 from file", cfg.Server.Port)
	}
	if cfg.Database.Host != "env-host" {
		t.Errorf("Database.Host = %q, env should override file", cfg.Database.Host)
	}
	if cfg.Database.Database != "ponds" {
		t.Errorf("Database.Database = %q, want ponds", cfg.Database.Database)
	}
	if cfg.Monitor.AlertCooldown != 2*time.Minute {
		t.Errorf("AlertCooldown = %s, want 2m", cfg.Monitor.AlertCooldown)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from .env", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(t.TempDir())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad database port", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"missing database", func(c *Config) { c.Database.Database = "" }, "database.database"},
		{"unknown timezone", func(c *Config) { c.Monitor.Timezone = "Mars/Olympus" }, "monitor.timezone"},
		{"zero cooldown", func(c *Config) { c.Monitor.AlertCooldown = 0 }, "monitor.alert_cooldown"},
		{"negative wifi timeout", func(c *Config) { c.Monitor.WiFiConfirmTimeout = -time.Second }, "monitor.wifi_confirm_timeout"},
		{"wifi timeout outlasts write timeout", func(c *Config) { c.Monitor.WiFiConfirmTimeout = c.Server.WriteTimeout }, "server.write_timeout"},
		{"zero history limit", func(c *Config) { c.Monitor.HistoryLimit = 0 }, "monitor.history_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
