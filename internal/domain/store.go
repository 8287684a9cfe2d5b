package domain

import (
	"context"
	"time"
)

// RuleStore persists arbitrage rules. Update is compare-and-swap: it applies
// only when the stored version equals expectedVersion, bumping the version by
// one; otherwise it returns ErrVersionConflict and leaves the row unchanged.
// Retry policy on conflict belongs to the caller, not the store.
type RuleStore interface {
	GetByID(ctx context.Context, ruleID string) (Rule, error)
	ListByStatus(ctx context.Context, status RuleStatus) ([]Rule, error)
	Update(ctx context.Context, rule Rule, expectedVersion int64) error
}

// TransactionStore persists ledger entries. UpdateState is compare-and-swap
// on the row version, same contract as RuleStore.Update. Rows are append-only
// apart from state transitions; there is no delete.
type TransactionStore interface {
	Create(ctx context.Context, tx Transaction) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	ListByRuleAndState(ctx context.Context, ruleID string, state TransactionState) ([]Transaction, error)
	UpdateState(ctx context.Context, id string, state TransactionState, errorCode string, expectedVersion int64) error
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]Transaction, error)
}

// SecretStore resolves the encrypted venue credentials a rule refers to by
// site name. Implementations return the ciphertext; decryption happens in
// the wiring layer so plaintext lives only in memory for one run.
type SecretStore interface {
	GetByUserAndSite(ctx context.Context, userID, siteName string) (VenueSecret, error)
}

// VenueSecret is the persisted (encrypted) form of one venue credential pair.
type VenueSecret struct {
	UserID          string
	SiteName        string
	APIKey          string
	EncryptedSecret []byte
	ModifiedAt      time.Time
}

// LockManager acquires a distributed advisory lock. The scheduler uses it to
// keep two processes from invoking the same rule at once; the orchestrator's
// own in-progress guard stays a plain read-then-act check.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds outbound venue API call rates.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LedgerArchiver exports terminal ledger rows to long-term storage.
type LedgerArchiver interface {
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int, error)
}
