package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/keidrun/coinietrade/internal/domain"
)

// unlockLua releases a lock only if the caller still owns it. Comparing the
// token before deleting avoids releasing a lock that expired and was since
// acquired by another scheduler instance.
const unlockLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

var unlockScript = redis.NewScript(unlockLua)

// LockManager implements domain.LockManager on top of Redis SETNX with a TTL.
// Each acquisition stores a random token so that only the holder can release.
type LockManager struct {
	client *Client
	prefix string
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager creates a LockManager. Keys are stored under the given
// prefix, e.g. "coinietrade:lock:".
func NewLockManager(client *Client, prefix string) *LockManager {
	if prefix == "" {
		prefix = "coinietrade:lock:"
	}
	return &LockManager{client: client, prefix: prefix}
}

// Acquire takes the named lock for ttl. It returns domain.ErrLockHeld if
// another holder currently owns the lock, and a release func on success.
// Release is best-effort: an expired lock simply stays expired.
func (m *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := m.prefix + name
	token := uuid.NewString()

	ok, err := m.client.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %q: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: acquire lock %q: %w", name, domain.ErrLockHeld)
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, m.client.rdb, []string{key}, token).Err()
	}
	return release, nil
}
