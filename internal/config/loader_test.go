package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.BatchSize != def.BatchSize || cfg.JWTTTL != def.JWTTTL {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("addr: \":9000\"\nbatch_size: 25\nmessage_rate_window: 30s\ndatabase_driver: postgres\ndatabase_url: postgres://file\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ROOMCHAT_BATCH_SIZE", "10")
	t.Setenv("ROOMCHAT_NATS_URL", "nats://localhost:4222")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":9000" {
		t.Fatalf("file value not applied, addr=%q", cfg.Addr)
	}
	if cfg.BatchSize != 10 {
		t.Fatalf("env must override file, batch_size=%d", cfg.BatchSize)
	}
	if cfg.MessageRateWindow != 30*time.Second {
		t.Fatalf("unexpected window %v", cfg.MessageRateWindow)
	}
	if cfg.NATSURL != "nats://localhost:4222" {
		t.Fatalf("unexpected nats url %q", cfg.NATSURL)
	}
	if cfg.DatabaseDriver != DriverPostgres || cfg.DatabaseURL != "postgres://file" {
		t.Fatalf("unexpected database settings: %q %q", cfg.DatabaseDriver, cfg.DatabaseURL)
	}
}

func TestUpdateFromOverridesNonZero(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000", BatchSize: 5})

	if cfg.Addr != ":7000" || cfg.BatchSize != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != Default().ShutdownTimeout {
		t.Fatalf("zero values must not override")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, false},
		{"negative payload cap", func(c *Config) { c.MaxMessageBytes = -1 }, false},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, false},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = DriverPostgres }, false},
		{"postgres with url", func(c *Config) {
			c.DatabaseDriver = DriverPostgres
			c.DatabaseURL = "postgres://localhost/roomchat"
		}, true},
		{"rate limit without window", func(c *Config) { c.MessageRateWindow = 0 }, false},
		{"rate limit disabled", func(c *Config) {
			c.MessageRateLimit = 0
			c.MessageRateWindow = 0
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
