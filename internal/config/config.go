// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout_seconds"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_minutes"`
}

// WorkerConfig governs the background execution pool.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// FetchConfig configures the passive HTTP fetcher.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the browser-based fetchers.
type HeadlessConfig struct {
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// RetentionConfig controls the periodic cleanup of aged rows.
type RetentionConfig struct {
	Days     int    `mapstructure:"days"`
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.queue_depth", 100)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "pageharvest-bot/0.1")
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.schedule", "0 2 * * *")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Worker.QueueDepth <= 0 {
		return fmt.Errorf("worker.queue_depth must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	return nil
}

// FetchTimeout converts the passive fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// ShutdownTimeout converts the server drain budget into a duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// ConnLifetime converts the pool connection lifetime into a duration.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetime) * time.Minute
}
