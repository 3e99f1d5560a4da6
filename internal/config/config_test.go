package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  shutdown_timeout_seconds: 5
db:
  dsn: postgres://scraper:pw@localhost:5432/scraper
  max_conns: 20
  min_conns: 4
  max_conn_lifetime_minutes: 15
worker:
  concurrency: 6
  queue_depth: 128
fetch:
  timeout_seconds: 45
  user_agent: harvest-agent
headless:
  nav_timeout_seconds: 30
retention:
  days: 14
  schedule: "0 3 * * *"
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.DB.DSN != "postgres://scraper:pw@localhost:5432/scraper" {
		t.Fatalf("expected db dsn override, got %q", cfg.DB.DSN)
	}
	if cfg.Worker.Concurrency != 6 || cfg.Worker.QueueDepth != 128 {
		t.Fatalf("expected worker overrides to apply: %+v", cfg.Worker)
	}
	if cfg.Fetch.UserAgent != "harvest-agent" {
		t.Fatalf("expected fetch user agent override, got %q", cfg.Fetch.UserAgent)
	}
	if cfg.Retention.Days != 14 || cfg.Retention.Schedule != "0 3 * * *" {
		t.Fatalf("expected retention overrides to apply: %+v", cfg.Retention)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected logging.development false")
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.NavTimeout(); got != 30*time.Second {
		t.Fatalf("expected nav timeout 30s, got %v", got)
	}
	if got := cfg.ShutdownTimeout(); got != 5*time.Second {
		t.Fatalf("expected shutdown timeout 5s, got %v", got)
	}
	if got := cfg.ConnLifetime(); got != 15*time.Minute {
		t.Fatalf("expected conn lifetime 15m, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Worker.Concurrency != 10 {
		t.Fatalf("expected default concurrency 10, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Retention.Days != 30 || cfg.Retention.Schedule != "0 2 * * *" {
		t.Fatalf("expected default retention, got %+v", cfg.Retention)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected logging.development default true")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Worker:    WorkerConfig{Concurrency: 1, QueueDepth: 10},
		Fetch:     FetchConfig{TimeoutSeconds: 10},
		Headless:  HeadlessConfig{NavTimeoutSec: 20},
		Retention: RetentionConfig{Days: 30},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Worker.Concurrency = 0
				return c
			}(),
			want: "worker.concurrency",
		},
		{
			name: "invalid queue depth",
			cfg: func() Config {
				c := base
				c.Worker.QueueDepth = 0
				return c
			}(),
			want: "worker.queue_depth",
		},
		{
			name: "invalid fetch timeout",
			cfg: func() Config {
				c := base
				c.Fetch.TimeoutSeconds = 0
				return c
			}(),
			want: "fetch.timeout_seconds",
		},
		{
			name: "invalid nav timeout",
			cfg: func() Config {
				c := base
				c.Headless.NavTimeoutSec = 0
				return c
			}(),
			want: "headless.nav_timeout_seconds",
		},
		{
			name: "invalid retention",
			cfg: func() Config {
				c := base
				c.Retention.Days = 0
				return c
			}(),
			want: "retention.days",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
