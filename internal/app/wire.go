package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/keidrun/coinietrade/internal/blob/s3"
	"github.com/keidrun/coinietrade/internal/cache/redis"
	"github.com/keidrun/coinietrade/internal/config"
	"github.com/keidrun/coinietrade/internal/crypto"
	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/exchange"
	"github.com/keidrun/coinietrade/internal/exchange/bitflyer"
	"github.com/keidrun/coinietrade/internal/exchange/zaif"
	"github.com/keidrun/coinietrade/internal/notify"
	"github.com/keidrun/coinietrade/internal/orchestrator"
	"github.com/keidrun/coinietrade/internal/runner"
	"github.com/keidrun/coinietrade/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Rules   domain.RuleStore
	Ledger  domain.TransactionStore
	Secrets domain.SecretStore

	// Coordination
	Locks   domain.LockManager
	Limiter domain.RateLimiter

	// Execution
	Registry *exchange.Registry
	Runner   *runner.Runner

	// Ledger archival (nil when archive is disabled)
	Archiver domain.LedgerArchiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "run", "once":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Rules = postgres.NewRuleStore(pool)
		deps.Ledger = postgres.NewTransactionStore(pool)
		deps.Secrets = postgres.NewSecretStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Locks = redis.NewLockManager(redisClient, "")

	limiter := redis.NewRateLimiter(redisClient)
	limiter.SetLimit(string(exchange.VenueBitflyer), cfg.Bitflyer.RateLimitPerSecond)
	limiter.SetLimit(string(exchange.VenueZaif), cfg.Zaif.RateLimitPerSecond)
	deps.Limiter = limiter

	// --- S3 ledger archival ---
	if cfg.Archive.Enabled && deps.Ledger != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(deps.Ledger, s3blob.NewWriter(s3Client), logger)
	}

	// --- Venue adapter registry ---
	deps.Registry = buildRegistry(cfg, deps.Limiter)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Runner ---
	if needsPostgres(cfg.Mode) {
		orch := orchestrator.New(deps.Ledger, cfg.Engine.CommitmentWindow.Duration, logger)
		creds := &secretSource{
			secrets:    deps.Secrets,
			passphrase: cfg.Secrets.Passphrase,
		}
		deps.Runner = runner.New(deps.Rules, creds, deps.Registry, orch, logger)
	}

	return deps, cleanup, nil
}

// buildRegistry registers one factory per supported venue. Each adapter is
// wrapped with the shared per-venue rate limiter.
func buildRegistry(cfg *config.Config, limiter domain.RateLimiter) *exchange.Registry {
	reg := exchange.NewRegistry()

	reg.Register(exchange.VenueBitflyer, func(creds exchange.Credentials, pair exchange.Pair) (exchange.Exchange, error) {
		c := bitflyer.New(creds, pair)
		if cfg.Bitflyer.BaseURL != "" {
			c.SetBaseURL(cfg.Bitflyer.BaseURL)
		}
		return exchange.WithRateLimit(c, limiter), nil
	})

	reg.Register(exchange.VenueZaif, func(creds exchange.Credentials, pair exchange.Pair) (exchange.Exchange, error) {
		c := zaif.New(creds, pair)
		if cfg.Zaif.BaseURL != "" {
			c.SetBaseURL(cfg.Zaif.BaseURL)
		}
		return exchange.WithRateLimit(c, limiter), nil
	})

	return reg
}

// secretSource resolves encrypted venue credentials from the secret store and
// decrypts them with the operator passphrase. Plaintext secrets never leave
// the returned Credentials value.
type secretSource struct {
	secrets    domain.SecretStore
	passphrase string
}

var _ runner.CredentialSource = (*secretSource)(nil)

func (s *secretSource) Credentials(ctx context.Context, userID, siteName string) (exchange.Credentials, error) {
	sec, err := s.secrets.GetByUserAndSite(ctx, userID, siteName)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("wire: secret for %s/%s: %w", userID, siteName, err)
	}
	plain, err := crypto.DecryptSecret(sec.EncryptedSecret, s.passphrase)
	if err != nil {
		return exchange.Credentials{}, fmt.Errorf("wire: decrypt secret for %s/%s: %w", userID, siteName, err)
	}
	return exchange.Credentials{APIKey: sec.APIKey, APISecret: plain}, nil
}
