package domain

import "time"

// PriceLevel is a single price+amount entry in an order book.
type PriceLevel struct {
	Price  float64
	Amount float64
}

// OrderBook is an ephemeral snapshot of a venue's book: bids sorted
// descending by price, asks ascending. It is never persisted.
type OrderBook struct {
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the highest bid, or a zero level when the book is empty.
func (b OrderBook) BestBid() PriceLevel {
	if len(b.Bids) == 0 {
		return PriceLevel{}
	}
	return b.Bids[0]
}

// BestAsk returns the lowest ask, or a zero level when the book is empty.
func (b OrderBook) BestAsk() PriceLevel {
	if len(b.Asks) == 0 {
		return PriceLevel{}
	}
	return b.Asks[0]
}

// Balance is the tradable holdings on one venue for a coin/currency pair.
type Balance struct {
	Coin     float64 // base asset amount, e.g. BTC
	Currency float64 // quote asset amount, e.g. JPY
}
