package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newFlags(t *testing.T) (*Config, *pflag.FlagSet) {
	t.Helper()
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	return cfg, fs
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Addr() != "localhost:8080" {
		t.Errorf("Expected localhost:8080, got %s", cfg.Addr())
	}
	if cfg.IdleTTL != 30*time.Minute {
		t.Errorf("Expected 30m idle TTL, got %s", cfg.IdleTTL)
	}
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg, fs := newFlags(t)

	err := fs.Parse([]string{"--port", "9090", "--idle_ttl", "5m", "--archive", "redis", "-d"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := ApplyEnv(fs, NewViper()); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.IdleTTL != 5*time.Minute {
		t.Errorf("Expected idle TTL 5m, got %s", cfg.IdleTTL)
	}
	if cfg.Archive != "redis" {
		t.Errorf("Expected redis archive, got %s", cfg.Archive)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be set")
	}
}

func TestEnvironmentFillsUnsetFlags(t *testing.T) {
	t.Setenv("CONNECTFOUR_PORT", "7070")
	t.Setenv("CONNECTFOUR_IDLE_TTL", "45m")
	t.Setenv("CONNECTFOUR_JWT_SECRET", "s3cret")
	t.Setenv("CONNECTFOUR_HOST", "0.0.0.0")

	cfg, fs := newFlags(t)
	if err := fs.Parse([]string{"--host", "127.0.0.1"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := ApplyEnv(fs, NewViper()); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("Expected port from env, got %d", cfg.Port)
	}
	if cfg.IdleTTL != 45*time.Minute {
		t.Errorf("Expected idle TTL from env, got %s", cfg.IdleTTL)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Errorf("Expected jwt secret from env, got %q", cfg.JWTSecret)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected the flag to win over env, got %s", cfg.Host)
	}
}

func TestBadEnvironmentValue(t *testing.T) {
	t.Setenv("CONNECTFOUR_PORT", "not-a-port")

	_, fs := newFlags(t)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := ApplyEnv(fs, NewViper()); err == nil {
		t.Error("Expected an error for a non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"port zero", func(c *Config) { c.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Port = 70000 }, false},
		{"zero ttl", func(c *Config) { c.IdleTTL = 0 }, false},
		{"bad schedule", func(c *Config) { c.ReapSchedule = "whenever" }, false},
		{"cron expression", func(c *Config) { c.ReapSchedule = "*/5 * * * *" }, true},
		{"unknown archive", func(c *Config) { c.Archive = "mongo" }, false},
		{"file without dir", func(c *Config) { c.Archive = "file"; c.ArchiveDir = "" }, false},
		{"file archive", func(c *Config) { c.Archive = "file" }, true},
		{"postgres without dsn", func(c *Config) { c.Archive = "postgres" }, false},
		{"postgres archive", func(c *Config) { c.Archive = "postgres"; c.PostgresDSN = "host=localhost" }, true},
		{"ngrok domain without ngrok", func(c *Config) { c.NgrokDomain = "c4.ngrok.app" }, false},
		{"ngrok domain", func(c *Config) { c.Ngrok = true; c.NgrokDomain = "c4.ngrok.app" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Error("Expected validation error")
				} else if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Host = "0.0.0.0"
	cfg.Port = 9000
	if got := cfg.BaseURL(); got != "http://localhost:9000" {
		t.Errorf("Expected http://localhost:9000, got %s", got)
	}
}

func TestArchiveConfig(t *testing.T) {
	cfg := Default()
	cfg.Archive = "redis"
	cfg.RedisDB = 2
	cfg.ArchiveLimit = 25

	ac := cfg.ArchiveConfig()
	if ac.Backend != "redis" || ac.RedisAddr != "localhost:6379" || ac.RedisDB != 2 {
		t.Errorf("Unexpected archive config %+v", ac)
	}
	if ac.Limit != 25 || ac.RedisKey != "connectfour:matches" || ac.Dir != "matches" {
		t.Errorf("Unexpected archive config %+v", ac)
	}
}
