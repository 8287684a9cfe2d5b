package exchange

import (
	"context"

	"github.com/keidrun/coinietrade/internal/domain"
)

// RateLimited wraps an Exchange so every venue API call first passes the
// shared rate limiter. Both legs of a run draw from the same per-venue
// budget, keeping the executor inside each venue's request limits.
type RateLimited struct {
	inner   Exchange
	limiter domain.RateLimiter
}

var _ Exchange = (*RateLimited)(nil)

// WithRateLimit wraps ex with the given limiter. A nil limiter returns ex
// unchanged.
func WithRateLimit(ex Exchange, limiter domain.RateLimiter) Exchange {
	if limiter == nil {
		return ex
	}
	return &RateLimited{inner: ex, limiter: limiter}
}

func (r *RateLimited) Name() string               { return r.inner.Name() }
func (r *RateLimited) MinTradableAmount() float64 { return r.inner.MinTradableAmount() }

func (r *RateLimited) FeeRate(ctx context.Context) (float64, error) {
	if err := r.limiter.Wait(ctx, r.inner.Name()); err != nil {
		return 0, err
	}
	return r.inner.FeeRate(ctx)
}

func (r *RateLimited) Balances(ctx context.Context) (domain.Balance, error) {
	if err := r.limiter.Wait(ctx, r.inner.Name()); err != nil {
		return domain.Balance{}, err
	}
	return r.inner.Balances(ctx)
}

func (r *RateLimited) PlaceOrder(ctx context.Context, process domain.OrderProcess, orderType domain.OrderType, price, amount float64) (string, error) {
	if err := r.limiter.Wait(ctx, r.inner.Name()); err != nil {
		return "", err
	}
	return r.inner.PlaceOrder(ctx, process, orderType, price, amount)
}

func (r *RateLimited) IsFilled(ctx context.Context, orderID string) (bool, error) {
	if err := r.limiter.Wait(ctx, r.inner.Name()); err != nil {
		return false, err
	}
	return r.inner.IsFilled(ctx, orderID)
}

func (r *RateLimited) Cancel(ctx context.Context, orderID string) (string, error) {
	if err := r.limiter.Wait(ctx, r.inner.Name()); err != nil {
		return "", err
	}
	return r.inner.Cancel(ctx, orderID)
}

func (r *RateLimited) Board(ctx context.Context) (domain.OrderBook, error) {
	if err := r.limiter.Wait(ctx, r.inner.Name()); err != nil {
		return domain.OrderBook{}, err
	}
	return r.inner.Board(ctx)
}
