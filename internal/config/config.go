// Package config defines the top-level configuration for the coinietrade
// executor and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by COINIETRADE_* environment variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Bitflyer  VenueConfig     `toml:"bitflyer"`
	Zaif      VenueConfig     `toml:"zaif"`
	Secrets   SecretsConfig   `toml:"secrets"`
	Engine    EngineConfig    `toml:"engine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Archive   ArchiveConfig   `toml:"archive"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters for the rule table and
// the transaction ledger.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// VenueConfig holds per-venue endpoint overrides and API rate limits. Base
// URLs default to the venue's production endpoints when empty; credentials
// themselves live encrypted in the venue_secrets table, not here.
type VenueConfig struct {
	BaseURL            string `toml:"base_url"`
	WsURL              string `toml:"ws_url"`
	RateLimitPerSecond int    `toml:"rate_limit_per_second"`
}

// SecretsConfig holds the passphrase used to decrypt venue API secrets at
// rest. Operators normally inject it via COINIETRADE_SECRETS_PASSPHRASE.
type SecretsConfig struct {
	Passphrase string `toml:"passphrase"`
}

// EngineConfig holds trade execution parameters shared by every rule.
type EngineConfig struct {
	// CommitmentWindow is how long the orchestrator waits for both legs to
	// fill before checking order status.
	CommitmentWindow duration `toml:"commitment_window"`
}

// SchedulerConfig holds run-mode loop parameters.
type SchedulerConfig struct {
	Interval duration `toml:"interval"`
	LockTTL  duration `toml:"lock_ttl"`
}

// ArchiveConfig holds ledger archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. A TOML
// file only needs to override the fields that differ from these.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "coinietrade",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "coinietrade-ledger",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Bitflyer: VenueConfig{
			BaseURL:            "https://api.bitflyer.com",
			WsURL:              "wss://ws.lightstream.bitflyer.com/json-rpc",
			RateLimitPerSecond: 5,
		},
		Zaif: VenueConfig{
			BaseURL:            "https://api.zaif.jp",
			RateLimitPerSecond: 5,
		},
		Engine: EngineConfig{
			CommitmentWindow: duration{60 * time.Second},
		},
		Scheduler: SchedulerConfig{
			Interval: duration{time.Minute},
			LockTTL:  duration{5 * time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"run_success", "run_failure", "run_cancellation", "error"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":     true,
	"once":    true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, once, monitor)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only required when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Venues
	if c.Bitflyer.BaseURL == "" {
		errs = append(errs, "bitflyer: base_url must not be empty")
	}
	if c.Zaif.BaseURL == "" {
		errs = append(errs, "zaif: base_url must not be empty")
	}
	if c.Bitflyer.RateLimitPerSecond < 1 {
		errs = append(errs, "bitflyer: rate_limit_per_second must be >= 1")
	}
	if c.Zaif.RateLimitPerSecond < 1 {
		errs = append(errs, "zaif: rate_limit_per_second must be >= 1")
	}

	// Secrets — trading modes need the decryption passphrase.
	if c.Mode == "run" || c.Mode == "once" {
		if c.Secrets.Passphrase == "" {
			errs = append(errs, "secrets: passphrase is required for mode "+c.Mode)
		}
	}

	// Engine
	if c.Engine.CommitmentWindow.Duration <= 0 {
		errs = append(errs, "engine: commitment_window must be > 0")
	}

	// Scheduler
	if c.Mode == "run" {
		if c.Scheduler.Interval.Duration <= 0 {
			errs = append(errs, "scheduler: interval must be > 0")
		}
		if c.Scheduler.LockTTL.Duration <= 0 {
			errs = append(errs, "scheduler: lock_ttl must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
