package domain

import "time"

// RuleStatus is the lifecycle state of an arbitrage rule.
type RuleStatus string

const (
	RuleStatusAvailable   RuleStatus = "available"
	RuleStatusUnavailable RuleStatus = "unavailable"
	RuleStatusLocked      RuleStatus = "locked"
	RuleStatusDeleted     RuleStatus = "deleted"
)

// StrategyTag identifies the trading strategy a rule runs.
type StrategyTag string

const (
	StrategySimpleArbitrage StrategyTag = "simple_arbitrage"
)

// RuleCounts holds the mutable aggregate counters of a rule.
type RuleCounts struct {
	ExecutionCount    int64
	SuccessCount      int64
	FailureCount      int64
	CancellationCount int64
}

// Add returns the element-wise sum of two count sets.
func (c RuleCounts) Add(d RuleCounts) RuleCounts {
	return RuleCounts{
		ExecutionCount:    c.ExecutionCount + d.ExecutionCount,
		SuccessCount:      c.SuccessCount + d.SuccessCount,
		FailureCount:      c.FailureCount + d.FailureCount,
		CancellationCount: c.CancellationCount + d.CancellationCount,
	}
}

// Rule is one user-configured arbitrage rule together with its mutable
// aggregate. Every successful mutation increments Version by exactly one; a
// write whose expected version does not match the stored one is rejected
// with ErrVersionConflict.
type Rule struct {
	UserID         string
	RuleID         string
	Strategy       StrategyTag
	CoinUnit       string // e.g. "btc"
	CurrencyUnit   string // e.g. "jpy"
	OrderType      OrderType
	AssetRange     float64 // fraction (0,1] of holdings usable per run
	AssetMinLimit  float64
	BuyWeightRate  float64
	SellWeightRate float64
	MaxFailedLimit int64
	OneSiteName    string
	OtherSiteName  string
	TotalProfit    float64
	Counts         RuleCounts
	Status         RuleStatus
	ModifiedAt     time.Time
	Version        int64
}

// Available reports whether the rule may be scheduled for execution.
func (r Rule) Available() bool {
	return r.Status == RuleStatusAvailable
}

// ShouldLock reports whether the rule's failure count has reached its
// configured limit. Rules over the limit are flipped to locked by the
// scheduler and no longer run.
func (r Rule) ShouldLock() bool {
	return r.MaxFailedLimit > 0 && r.Counts.FailureCount >= r.MaxFailedLimit
}
