package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/keidrun/coinietrade/internal/domain"
)

// slidingWindowLua counts requests in a sorted set scored by microsecond
// timestamp, trims entries older than the window, and admits the request only
// when the remaining count is below the limit. Members carry a per-request
// unique suffix so requests landing in the same microsecond stay distinct.
// Returns {allowed, count}.
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)
if count < limit then
	redis.call("ZADD", key, now, member)
	redis.call("PEXPIRE", key, math.ceil(window / 1000))
	return {1, count + 1}
end
return {0, count}
`

const waitPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter using a sliding-window approach
// backed by Redis sorted sets and an atomic Lua script. Venue adapters share
// one instance keyed per venue so both legs of a trade draw from the same
// budget.
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script

	mu     sync.RWMutex
	limits map[string]int // per-key requests per second for Wait
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
		limits:        make(map[string]int),
	}
}

// SetLimit configures the per-second request limit Wait applies for key.
// Keys without a configured limit fall back to 1 request per second.
func (rl *RateLimiter) SetLimit(key string, perSecond int) {
	if perSecond < 1 {
		return
	}
	rl.mu.Lock()
	rl.limits[key] = perSecond
	rl.mu.Unlock()
}

func (rl *RateLimiter) limitFor(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if n, ok := rl.limits[key]; ok {
		return n
	}
	return 1
}

func rateLimitKey(key string) string {
	return "coinietrade:ratelimit:" + key
}

// requestMember builds the sorted-set member for one request. The random
// suffix keeps two requests in the same microsecond from collapsing into a
// single member, which would undercount the window.
func requestMember(now int64) string {
	return strconv.FormatInt(now, 10) + "-" + uuid.NewString()
}

// Allow checks whether a request for the given key is permitted under the
// sliding window rate limit. It returns true if the request is allowed (and
// the request is counted), or false if the limit has been reached.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()
	windowMicro := window.Microseconds()

	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		now,
		windowMicro,
		limit,
		requestMember(now),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}

	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(result))
	}

	return result[0] == 1, nil
}

// Wait blocks until a request for the given key is allowed. It polls at a
// fixed interval, returning an error if the context is cancelled. The applied
// limit comes from SetLimit, defaulting to 1 request per second.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	limit := rl.limitFor(key)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		default:
		}

		allowed, err := rl.Allow(ctx, key, limit, time.Second)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}
