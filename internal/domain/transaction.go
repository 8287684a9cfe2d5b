package domain

import "time"

// OrderProcess is the side of an arbitrage leg.
type OrderProcess string

const (
	OrderProcessBuy  OrderProcess = "buy"
	OrderProcessSell OrderProcess = "sell"
)

// OrderType is the venue order type used when placing a leg.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TransactionState is the lifecycle state of a ledger entry.
//
// The machine is INITIAL -> IN_PROGRESS -> {SUCCEEDED, CANCELED, FAILED}.
// The three right-hand states are terminal; nothing transitions out of them.
type TransactionState string

const (
	TxStateInitial    TransactionState = "INITIAL"
	TxStateInProgress TransactionState = "IN_PROGRESS"
	TxStateSucceeded  TransactionState = "SUCCEEDED"
	TxStateCanceled   TransactionState = "CANCELED"
	TxStateFailed     TransactionState = "FAILED"
)

// Terminal reports whether s is a final state.
func (s TransactionState) Terminal() bool {
	switch s {
	case TxStateSucceeded, TxStateCanceled, TxStateFailed:
		return true
	}
	return false
}

// CanTransition reports whether a ledger entry in state s may move to next.
func (s TransactionState) CanTransition(next TransactionState) bool {
	switch s {
	case TxStateInitial:
		return next == TxStateInProgress || next == TxStateCanceled || next == TxStateFailed
	case TxStateInProgress:
		return next.Terminal()
	}
	return false
}

// Transaction is one persisted ledger row covering a single leg of an
// arbitrage execution. Rows are created at the start of an orchestration run,
// mutated only by the orchestrator, and never deleted.
type Transaction struct {
	ID                 string
	UserID             string
	RuleID             string
	SiteName           string
	OrderProcess       OrderProcess
	OrderType          OrderType
	OrderPrice         float64
	OrderAmount        float64
	TransactionFeeRate float64
	State              TransactionState
	ExecutionTime      time.Time
	ErrorCode          string
	ModifiedAt         time.Time
	Version            int64
}
