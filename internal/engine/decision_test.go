package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keidrun/coinietrade/internal/domain"
)

func venue(name string, bid, bidAmount, ask, askAmount, fee float64) VenueData {
	return VenueData{
		Name: name,
		Board: domain.OrderBook{
			Bids: []domain.PriceLevel{{Price: bid, Amount: bidAmount}},
			Asks: []domain.PriceLevel{{Price: ask, Amount: askAmount}},
		},
		FeeRate:     fee,
		Balance:     domain.Balance{Coin: 10, Currency: 1_000_000},
		MinTradable: 0.001,
	}
}

func TestDecideADirection(t *testing.T) {
	// a's best bid (100) beats b's best ask (90) by more than twice the
	// bid-side fee, so the trade sells on a and buys on b.
	a := venue("alpha", 100, 5, 101, 5, 0.001)
	b := venue("beta", 89, 5, 90, 5, 0.001)

	dec, ok := Decide(a, b, Params{AssetRange: 0.5})
	require.True(t, ok)

	assert.Equal(t, "beta", dec.BuyVenue)
	assert.Equal(t, "alpha", dec.SellVenue)
	assert.Equal(t, 90.0, dec.BuyPrice)
	assert.Equal(t, 100.0, dec.SellPrice)
	assert.Equal(t, 0.001, dec.BuyFeeRate)
	assert.Equal(t, 0.001, dec.SellFeeRate)
}

func TestDecideBDirection(t *testing.T) {
	a := venue("alpha", 89, 5, 90, 5, 0.001)
	b := venue("beta", 100, 5, 101, 5, 0.001)

	dec, ok := Decide(a, b, Params{AssetRange: 0.5})
	require.True(t, ok)

	assert.Equal(t, "alpha", dec.BuyVenue)
	assert.Equal(t, "beta", dec.SellVenue)
}

func TestDecideADirectionCheckedFirst(t *testing.T) {
	// Fabricated crossed books where both directions clear the hurdle: the
	// A-direction (sell on a) must win.
	a := venue("alpha", 100, 5, 95, 5, 0)
	b := venue("beta", 99, 5, 94, 5, 0)

	dec, ok := Decide(a, b, Params{AssetRange: 1})
	require.True(t, ok)
	assert.Equal(t, "alpha", dec.SellVenue)
}

func TestDecideNoTargetWhenSpreadConsumedByFees(t *testing.T) {
	// Raw spread is 1 but 2*100*0.01 = 2 eats it.
	a := venue("alpha", 100, 5, 101, 5, 0.01)
	b := venue("beta", 98, 5, 99, 5, 0.01)

	_, ok := Decide(a, b, Params{AssetRange: 1})
	assert.False(t, ok)
}

func TestDecideNoTargetOnEmptyBook(t *testing.T) {
	a := venue("alpha", 100, 5, 101, 5, 0.001)
	b := VenueData{Name: "beta", MinTradable: 0.001, Balance: domain.Balance{Coin: 10, Currency: 1_000_000}}

	_, ok := Decide(a, b, Params{AssetRange: 1})
	assert.False(t, ok)
}

func TestDecideWeightRatesAdjustPrices(t *testing.T) {
	a := venue("alpha", 100, 5, 101, 5, 0)
	b := venue("beta", 89, 5, 90, 5, 0)

	dec, ok := Decide(a, b, Params{
		AssetRange:     1,
		BuyWeightRate:  0.001,
		SellWeightRate: -0.001,
	})
	require.True(t, ok)

	assert.InDelta(t, 90*1.001, dec.BuyPrice, 1e-9)
	assert.InDelta(t, 100*0.999, dec.SellPrice, 1e-9)
}

func TestDecideAmountCappedByAskDepth(t *testing.T) {
	a := venue("alpha", 100, 50, 101, 50, 0)
	b := venue("beta", 89, 5, 90, 0.25, 0)

	dec, ok := Decide(a, b, Params{AssetRange: 1})
	require.True(t, ok)
	assert.Equal(t, 0.25, dec.Amount)
}

func TestDecideAmountCappedByCurrencyBalance(t *testing.T) {
	a := venue("alpha", 100, 50, 101, 50, 0)
	b := venue("beta", 89, 5, 90, 50, 0)
	b.Balance.Currency = 900 // 900 * 0.5 / 90 = 5 coins

	dec, ok := Decide(a, b, Params{AssetRange: 0.5})
	require.True(t, ok)
	assert.Equal(t, 5.0, dec.Amount)
}

func TestDecideAmountCappedBySellSideCoin(t *testing.T) {
	a := venue("alpha", 100, 50, 101, 50, 0)
	a.Balance.Coin = 2
	b := venue("beta", 89, 5, 90, 50, 0)

	dec, ok := Decide(a, b, Params{AssetRange: 0.5})
	require.True(t, ok)
	assert.Equal(t, 1.0, dec.Amount)
}

func TestDecideAmountFlooredToCoarserPrecision(t *testing.T) {
	a := venue("alpha", 100, 50, 101, 50, 0)
	a.Balance.Coin = 0.12345678
	a.MinTradable = 0.001
	b := venue("beta", 89, 5, 90, 50, 0)
	b.MinTradable = 0.0001

	dec, ok := Decide(a, b, Params{AssetRange: 1})
	require.True(t, ok)
	// Floored to 3 decimals, the precision of the coarser minimum.
	assert.Equal(t, 0.123, dec.Amount)
}

func TestDecideNoTargetBelowMinTradable(t *testing.T) {
	a := venue("alpha", 100, 50, 101, 50, 0)
	a.Balance.Coin = 0.0004
	b := venue("beta", 89, 5, 90, 50, 0)

	_, ok := Decide(a, b, Params{AssetRange: 1})
	assert.False(t, ok)
}

func TestDecideAssetMinLimitGuard(t *testing.T) {
	a := venue("alpha", 100, 50, 101, 50, 0)
	b := venue("beta", 89, 5, 90, 50, 0)
	b.Balance.Currency = 500

	_, ok := Decide(a, b, Params{AssetRange: 1, AssetMinLimit: 1000})
	assert.False(t, ok)

	b.Balance.Currency = 1000
	_, ok = Decide(a, b, Params{AssetRange: 1, AssetMinLimit: 1000})
	assert.True(t, ok)
}

func TestDecideProfitFlooredWithFees(t *testing.T) {
	// Sell 1 coin at 100 on alpha (fee 0.001), buy at 90 on beta (fee 0.001):
	// floor(100*1*0.999 - 90*1*0.999) = floor(9.99) = 9.
	a := venue("alpha", 100, 5, 101, 5, 0.001)
	a.Balance.Coin = 1
	b := venue("beta", 89, 5, 90, 5, 0.001)

	dec, ok := Decide(a, b, Params{AssetRange: 1})
	require.True(t, ok)
	assert.Equal(t, 1.0, dec.Amount)
	assert.Equal(t, 9.0, dec.AnticipatedProfit)
}

func TestPrecisionDigits(t *testing.T) {
	assert.Equal(t, 3, precisionDigits(0.001))
	assert.Equal(t, 4, precisionDigits(0.0001))
	assert.Equal(t, 0, precisionDigits(1))
	assert.Equal(t, 0, precisionDigits(0))
	assert.Equal(t, 8, precisionDigits(1e-12)) // capped
}
