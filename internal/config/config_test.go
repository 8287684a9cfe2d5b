package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateForMonitorMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"

	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresPassphraseForTrading(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "run"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secrets: passphrase")

	cfg.Secrets.Passphrase = "p"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "flyby"
	cfg.Secrets.Passphrase = "p"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "once"
	cfg.Redis.Addr = ""
	cfg.Bitflyer.BaseURL = ""
	cfg.Engine.CommitmentWindow.Duration = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "bitflyer: base_url")
	assert.Contains(t, err.Error(), "engine: commitment_window")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"
log_level = "debug"

[engine]
commitment_window = "90s"

[scheduler]
interval = "30s"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.Engine.CommitmentWindow.Duration)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "https://api.bitflyer.com", cfg.Bitflyer.BaseURL)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"

[redis]
addr = "file:6379"
`), 0o600))

	t.Setenv("COINIETRADE_REDIS_ADDR", "env:6379")
	t.Setenv("COINIETRADE_SECRETS_PASSPHRASE", "hunter2")
	t.Setenv("COINIETRADE_SCHEDULER_INTERVAL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env:6379", cfg.Redis.Addr)
	assert.Equal(t, "hunter2", cfg.Secrets.Passphrase)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.Interval.Duration)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "dbpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Secrets.Passphrase = "pass"
	cfg.Notify.TelegramToken = "token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Secrets.Passphrase)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// The original is untouched.
	assert.Equal(t, "dbpass", cfg.Postgres.Password)

	// Empty fields stay empty rather than being replaced.
	assert.Empty(t, red.Notify.DiscordWebhookURL)
}
