// Package engine holds the arbitrage decision computation: given two venues'
// market data and balances plus the rule parameters, it decides trade
// direction, sizing, and anticipated profit. It performs no I/O.
package engine

import (
	"math"

	"github.com/keidrun/coinietrade/internal/domain"
)

// VenueData is one venue's inputs to the decision, gathered by the caller.
type VenueData struct {
	Name        string
	Board       domain.OrderBook
	FeeRate     float64
	Balance     domain.Balance
	MinTradable float64
}

// Params are the rule parameters the decision depends on.
type Params struct {
	AssetRange     float64 // fraction (0,1] of holdings usable per run
	AssetMinLimit  float64 // minimum currency balance required on the buy side
	BuyWeightRate  float64
	SellWeightRate float64
}

// Decision is a sized, priced buy/sell pair. Both legs always carry the same
// amount.
type Decision struct {
	BuyVenue  string
	SellVenue string
	BuyPrice  float64
	SellPrice float64
	// Amount is shared by both legs, floored to the precision implied by the
	// coarser of the two venues' minimum tradable amounts.
	Amount float64
	// AnticipatedProfit is the floored expected profit in currency units.
	AnticipatedProfit float64
	BuyFeeRate        float64
	SellFeeRate       float64
}

// Decide evaluates the profitability of both directions and sizes the chosen
// one. The A-direction (sell on a, buy on b) is checked before the
// B-direction so tie cases resolve deterministically. The second return is
// false when no profitable target exists or sizing falls below the shared
// minimum tradable amount.
func Decide(a, b VenueData, p Params) (Decision, bool) {
	// Sell on A, buy on B: A's best bid must beat B's best ask by more than
	// twice the bid-side fee. The 2x bid-fee charge is applied for both legs
	// regardless of the buy venue's own rate.
	if spread(a, b) > 0 {
		return size(b, a, p)
	}
	// Sell on B, buy on A.
	if spread(b, a) > 0 {
		return size(a, b, p)
	}
	return Decision{}, false
}

// spread is sellSide.bestBid - buySide.bestAsk - 2*sellSide.bestBid*sellSide.fee.
func spread(sellSide, buySide VenueData) float64 {
	bid := sellSide.Board.BestBid().Price
	ask := buySide.Board.BestAsk().Price
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return bid - ask - 2*bid*sellSide.FeeRate
}

// size prices and sizes the pair for a fixed direction.
func size(buySide, sellSide VenueData, p Params) (Decision, bool) {
	ask := buySide.Board.BestAsk()
	bid := sellSide.Board.BestBid()

	buyPrice := ask.Price * (1 + p.BuyWeightRate)
	sellPrice := bid.Price * (1 + p.SellWeightRate)
	if buyPrice <= 0 {
		return Decision{}, false
	}

	if p.AssetMinLimit > 0 && buySide.Balance.Currency < p.AssetMinLimit {
		return Decision{}, false
	}

	// The buy leg is capped by the ask's depth and by the usable fraction of
	// the buy-side currency balance; the sell leg by the usable fraction of
	// the sell-side coin holdings. Legs must carry equal amount, so a cap on
	// either side caps both.
	buyAmount := math.Min(ask.Amount, buySide.Balance.Currency*p.AssetRange/buyPrice)
	amount := math.Min(buyAmount, sellSide.Balance.Coin*p.AssetRange)

	minAmount := math.Max(buySide.MinTradable, sellSide.MinTradable)
	amount = floorToDigits(amount, precisionDigits(minAmount))
	if amount < minAmount || amount <= 0 {
		return Decision{}, false
	}

	profit := math.Floor(sellPrice*amount*(1-sellSide.FeeRate) - buyPrice*amount*(1-buySide.FeeRate))

	return Decision{
		BuyVenue:          buySide.Name,
		SellVenue:         sellSide.Name,
		BuyPrice:          buyPrice,
		SellPrice:         sellPrice,
		Amount:            amount,
		AnticipatedProfit: profit,
		BuyFeeRate:        buySide.FeeRate,
		SellFeeRate:       sellSide.FeeRate,
	}, true
}

// precisionDigits returns the number of decimal places a minimum tradable
// amount implies: 0.001 -> 3, 0.0001 -> 4, 1 -> 0.
func precisionDigits(min float64) int {
	if min <= 0 {
		return 0
	}
	digits := 0
	for min < 1 && digits < 8 {
		min *= 10
		digits++
	}
	return digits
}

// floorToDigits floors v to the given number of decimal places.
func floorToDigits(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	return math.Floor(v*scale) / scale
}
