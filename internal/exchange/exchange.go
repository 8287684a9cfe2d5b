// Package exchange defines the normalized capability set every trading venue
// adapter implements, the uniform error taxonomy adapters map venue failures
// into, and a typed registry for constructing adapters by venue identifier.
package exchange

import (
	"context"

	"github.com/keidrun/coinietrade/internal/domain"
)

// Credentials is one venue API key pair, held in memory for the duration of
// a single orchestration run. The persisted form is encrypted; see the
// crypto package.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Pair is the coin/currency pair an adapter trades, e.g. btc/jpy.
type Pair struct {
	CoinUnit     string
	CurrencyUnit string
}

// Exchange is the capability set shared by every venue adapter. All
// operations are pure network I/O against the venue's REST API; adapters
// keep no local state beyond connection resources and never leak
// venue-specific error shapes past this boundary (every error is *Error).
type Exchange interface {
	// Name returns the venue identifier, e.g. "bitflyer".
	Name() string
	// MinTradableAmount returns the venue's minimum order size in coin units.
	MinTradableAmount() float64
	// FeeRate returns the venue's trade fee rate for the configured pair.
	FeeRate(ctx context.Context) (float64, error)
	// Balances returns the tradable coin and currency holdings.
	Balances(ctx context.Context) (domain.Balance, error)
	// PlaceOrder submits an order and returns the venue order ID.
	PlaceOrder(ctx context.Context, process domain.OrderProcess, orderType domain.OrderType, price, amount float64) (string, error)
	// IsFilled reports whether the order no longer appears among the venue's
	// active orders.
	IsFilled(ctx context.Context, orderID string) (bool, error)
	// Cancel cancels an active order and returns its ID.
	Cancel(ctx context.Context, orderID string) (string, error)
	// Board returns the current order book, bids descending and asks
	// ascending by price.
	Board(ctx context.Context) (domain.OrderBook, error)
}
