package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COINIETRADE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COINIETRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COINIETRADE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COINIETRADE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COINIETRADE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COINIETRADE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COINIETRADE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COINIETRADE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COINIETRADE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COINIETRADE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COINIETRADE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COINIETRADE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COINIETRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COINIETRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COINIETRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COINIETRADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COINIETRADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COINIETRADE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COINIETRADE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COINIETRADE_S3_REGION")
	setStr(&cfg.S3.Bucket, "COINIETRADE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COINIETRADE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COINIETRADE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COINIETRADE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COINIETRADE_S3_FORCE_PATH_STYLE")

	// ── Venues ──
	setStr(&cfg.Bitflyer.BaseURL, "COINIETRADE_BITFLYER_BASE_URL")
	setStr(&cfg.Bitflyer.WsURL, "COINIETRADE_BITFLYER_WS_URL")
	setInt(&cfg.Bitflyer.RateLimitPerSecond, "COINIETRADE_BITFLYER_RATE_LIMIT_PER_SECOND")
	setStr(&cfg.Zaif.BaseURL, "COINIETRADE_ZAIF_BASE_URL")
	setInt(&cfg.Zaif.RateLimitPerSecond, "COINIETRADE_ZAIF_RATE_LIMIT_PER_SECOND")

	// ── Secrets ──
	setStr(&cfg.Secrets.Passphrase, "COINIETRADE_SECRETS_PASSPHRASE")

	// ── Engine ──
	setDuration(&cfg.Engine.CommitmentWindow, "COINIETRADE_ENGINE_COMMITMENT_WINDOW")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.Interval, "COINIETRADE_SCHEDULER_INTERVAL")
	setDuration(&cfg.Scheduler.LockTTL, "COINIETRADE_SCHEDULER_LOCK_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "COINIETRADE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "COINIETRADE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "COINIETRADE_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COINIETRADE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COINIETRADE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COINIETRADE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COINIETRADE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "COINIETRADE_MODE")
	setStr(&cfg.LogLevel, "COINIETRADE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
