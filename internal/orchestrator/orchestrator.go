// Package orchestrator drives one two-leg arbitrage execution: it guards
// against an in-flight run, sizes the pair via the decision engine, places
// both legs, compensates on partial failure, waits out the commitment
// window, and records every state transition in the persisted ledger.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/engine"
	"github.com/keidrun/coinietrade/internal/exchange"
)

// Ledger error codes written on compensation and timeout paths.
const (
	codeOrdersFailure = "orders failure"
	codeBuyTimeout    = "buy timeout"
	codeSellTimeout   = "sell timeout"
	codeBothTimeout   = "both timeout"
)

// defaultCommitmentWindow is the wait between placing both legs and checking
// their fill status.
const defaultCommitmentWindow = 60 * time.Second

// Orchestrator executes one invocation of a rule against two venue adapters.
type Orchestrator struct {
	ledger           domain.TransactionStore
	commitmentWindow time.Duration
	logger           *slog.Logger

	// sleep waits for the commitment window; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator writing to the given ledger. A non-positive
// commitmentWindow falls back to the default.
func New(ledger domain.TransactionStore, commitmentWindow time.Duration, logger *slog.Logger) *Orchestrator {
	if commitmentWindow <= 0 {
		commitmentWindow = defaultCommitmentWindow
	}
	return &Orchestrator{
		ledger:           ledger,
		commitmentWindow: commitmentWindow,
		logger:           logger.With(slog.String("component", "orchestrator")),
		sleep:            sleepCtx,
	}
}

// leg tracks one ledger row and the venue adapter that trades it.
type leg struct {
	tx      domain.Transaction
	venue   exchange.Exchange
	orderID string
}

// Execute runs the full protocol once for the given rule and its two
// adapters (in rule order: one/other). It always returns a RunResult whose
// counters the caller folds into the rule aggregate; the error carries
// operational detail for logging and is non-nil only on failure outcomes.
func (o *Orchestrator) Execute(ctx context.Context, rule domain.Rule, one, other exchange.Exchange) (domain.RunResult, error) {
	log := o.logger.With(slog.String("rule_id", rule.RuleID))

	// 1. A leg still marked IN_PROGRESS means an earlier invocation has not
	// reached a terminal state; treat this run as a vacuous success. This is
	// a read-then-act guard, not a lock.
	inflight, err := o.ledger.ListByRuleAndState(ctx, rule.RuleID, domain.TxStateInProgress)
	if err != nil {
		return domain.FailureResult(), fmt.Errorf("orchestrator: in-progress guard: %w", err)
	}
	if len(inflight) > 0 {
		log.WarnContext(ctx, "leg already in progress, skipping run",
			slog.String("transaction_id", inflight[0].ID),
		)
		return domain.SuccessResult(0), nil
	}

	// 2. Gather both venues' market data and run the decision engine.
	dec, found, err := o.decide(ctx, rule, one, other)
	if err != nil {
		return domain.FailureResult(), fmt.Errorf("orchestrator: decision inputs: %w", err)
	}
	if !found {
		log.DebugContext(ctx, "no profitable target")
		return domain.SuccessResult(0), nil
	}

	buyVenue, sellVenue := one, other
	if dec.BuyVenue == other.Name() {
		buyVenue, sellVenue = other, one
	}

	log.InfoContext(ctx, "target found",
		slog.String("buy_venue", dec.BuyVenue),
		slog.String("sell_venue", dec.SellVenue),
		slog.Float64("buy_price", dec.BuyPrice),
		slog.Float64("sell_price", dec.SellPrice),
		slog.Float64("amount", dec.Amount),
		slog.Float64("anticipated_profit", dec.AnticipatedProfit),
	)

	// 3. Persist both legs in INITIAL. A create failure midway must not
	// strand the rows already written, so they are marked FAILED.
	now := time.Now().UTC()
	buy := &leg{venue: buyVenue, tx: newTransaction(rule, dec.BuyVenue, domain.OrderProcessBuy, dec.BuyPrice, dec.Amount, dec.BuyFeeRate, now)}
	sell := &leg{venue: sellVenue, tx: newTransaction(rule, dec.SellVenue, domain.OrderProcessSell, dec.SellPrice, dec.Amount, dec.SellFeeRate, now)}
	legs := []*leg{buy, sell}
	for i, l := range legs {
		if err := o.ledger.Create(ctx, l.tx); err != nil {
			return o.failLegs(ctx, log, legs[:i], fmt.Errorf("create %s leg: %w", l.tx.OrderProcess, err))
		}
	}

	// 4. Buy leg first: IN_PROGRESS, then place.
	if err := o.transition(ctx, buy, domain.TxStateInProgress, ""); err != nil {
		return o.failLegs(ctx, log, []*leg{buy, sell}, err)
	}
	buy.orderID, err = buyVenue.PlaceOrder(ctx, domain.OrderProcessBuy, rule.OrderType, dec.BuyPrice, dec.Amount)
	if err != nil {
		log.WarnContext(ctx, "buy placement failed", slog.String("error", err.Error()))
		o.cancelOrder(ctx, log, buy)
		o.mustTransition(ctx, log, buy, domain.TxStateCanceled, codeOrdersFailure)
		// The sell leg was never started; it stays INITIAL.
		return domain.CancellationResult(), nil
	}

	// 5. Then the sell leg.
	if err := o.transition(ctx, sell, domain.TxStateInProgress, ""); err != nil {
		return o.failLegs(ctx, log, []*leg{buy, sell}, err)
	}
	sell.orderID, err = sellVenue.PlaceOrder(ctx, domain.OrderProcessSell, rule.OrderType, dec.SellPrice, dec.Amount)
	if err != nil {
		log.WarnContext(ctx, "sell placement failed, compensating buy leg", slog.String("error", err.Error()))
		o.cancelOrder(ctx, log, buy)
		o.cancelOrder(ctx, log, sell)
		o.mustTransition(ctx, log, buy, domain.TxStateCanceled, codeOrdersFailure)
		o.mustTransition(ctx, log, sell, domain.TxStateCanceled, codeOrdersFailure)
		return domain.CancellationResult(), nil
	}

	// 6. Wait out the commitment window, then branch on the 2x2 fill state.
	if err := o.sleep(ctx, o.commitmentWindow); err != nil {
		return o.failLegs(ctx, log, []*leg{buy, sell}, err)
	}

	buyFilled, err := buyVenue.IsFilled(ctx, buy.orderID)
	if err != nil {
		return o.failLegs(ctx, log, []*leg{buy, sell}, err)
	}
	sellFilled, err := sellVenue.IsFilled(ctx, sell.orderID)
	if err != nil {
		return o.failLegs(ctx, log, []*leg{buy, sell}, err)
	}

	switch {
	case buyFilled && sellFilled:
		o.mustTransition(ctx, log, buy, domain.TxStateSucceeded, "")
		o.mustTransition(ctx, log, sell, domain.TxStateSucceeded, "")
		log.InfoContext(ctx, "both legs filled",
			slog.Float64("profit", dec.AnticipatedProfit),
		)
		return domain.SuccessResult(dec.AnticipatedProfit), nil

	case !buyFilled && sellFilled:
		o.cancelOrder(ctx, log, buy)
		o.mustTransition(ctx, log, buy, domain.TxStateCanceled, codeBuyTimeout)
		o.mustTransition(ctx, log, sell, domain.TxStateSucceeded, "")
		return domain.FailureResult(), fmt.Errorf("orchestrator: buy leg unfilled after commitment window")

	case buyFilled && !sellFilled:
		o.cancelOrder(ctx, log, sell)
		o.mustTransition(ctx, log, sell, domain.TxStateCanceled, codeSellTimeout)
		o.mustTransition(ctx, log, buy, domain.TxStateSucceeded, "")
		return domain.FailureResult(), fmt.Errorf("orchestrator: sell leg unfilled after commitment window")

	default:
		o.cancelOrder(ctx, log, buy)
		o.cancelOrder(ctx, log, sell)
		o.mustTransition(ctx, log, buy, domain.TxStateCanceled, codeBothTimeout)
		o.mustTransition(ctx, log, sell, domain.TxStateCanceled, codeBothTimeout)
		return domain.CancellationResult(), nil
	}
}

// decide fetches board, fee rate, and balances from both venues concurrently
// and runs the pure decision.
func (o *Orchestrator) decide(ctx context.Context, rule domain.Rule, one, other exchange.Exchange) (engine.Decision, bool, error) {
	var a, b engine.VenueData

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { a, err = fetchVenueData(gctx, one); return err })
	g.Go(func() (err error) { b, err = fetchVenueData(gctx, other); return err })
	if err := g.Wait(); err != nil {
		return engine.Decision{}, false, err
	}

	dec, found := engine.Decide(a, b, engine.Params{
		AssetRange:     rule.AssetRange,
		AssetMinLimit:  rule.AssetMinLimit,
		BuyWeightRate:  rule.BuyWeightRate,
		SellWeightRate: rule.SellWeightRate,
	})
	return dec, found, nil
}

func fetchVenueData(ctx context.Context, ex exchange.Exchange) (engine.VenueData, error) {
	data := engine.VenueData{
		Name:        ex.Name(),
		MinTradable: ex.MinTradableAmount(),
	}
	var err error
	if data.Board, err = ex.Board(ctx); err != nil {
		return engine.VenueData{}, err
	}
	if data.FeeRate, err = ex.FeeRate(ctx); err != nil {
		return engine.VenueData{}, err
	}
	if data.Balance, err = ex.Balances(ctx); err != nil {
		return engine.VenueData{}, err
	}
	return data, nil
}

// newTransaction builds an INITIAL ledger row for one leg.
func newTransaction(rule domain.Rule, site string, process domain.OrderProcess, price, amount, feeRate float64, now time.Time) domain.Transaction {
	return domain.Transaction{
		ID:                 uuid.New().String(),
		UserID:             rule.UserID,
		RuleID:             rule.RuleID,
		SiteName:           site,
		OrderProcess:       process,
		OrderType:          rule.OrderType,
		OrderPrice:         price,
		OrderAmount:        amount,
		TransactionFeeRate: feeRate,
		State:              domain.TxStateInitial,
		ExecutionTime:      now,
		ModifiedAt:         now,
	}
}

// transition moves a leg to the given state under compare-and-swap, keeping
// the in-memory version in step with the store. Terminal states are never
// left.
func (o *Orchestrator) transition(ctx context.Context, l *leg, state domain.TransactionState, errorCode string) error {
	if !l.tx.State.CanTransition(state) {
		return fmt.Errorf("orchestrator: illegal transition %s -> %s", l.tx.State, state)
	}
	if err := o.ledger.UpdateState(ctx, l.tx.ID, state, errorCode, l.tx.Version); err != nil {
		return err
	}
	l.tx.State = state
	l.tx.ErrorCode = errorCode
	l.tx.Version++
	return nil
}

// mustTransition is transition for compensation paths: a ledger write error
// here cannot be compensated further, so it is logged and swallowed.
func (o *Orchestrator) mustTransition(ctx context.Context, log *slog.Logger, l *leg, state domain.TransactionState, errorCode string) {
	if err := o.transition(ctx, l, state, errorCode); err != nil {
		log.ErrorContext(ctx, "ledger transition failed during compensation",
			slog.String("transaction_id", l.tx.ID),
			slog.String("target_state", string(state)),
			slog.String("error", err.Error()),
		)
	}
}

// cancelOrder cancels a leg's venue order if one was placed. Cancellation is
// best effort; failures are logged and the ledger mark proceeds regardless.
func (o *Orchestrator) cancelOrder(ctx context.Context, log *slog.Logger, l *leg) {
	if l.orderID == "" {
		return
	}
	if _, err := l.venue.Cancel(ctx, l.orderID); err != nil {
		log.WarnContext(ctx, "order cancel failed",
			slog.String("venue", l.venue.Name()),
			slog.String("order_id", l.orderID),
			slog.String("error", err.Error()),
		)
	}
}

// failLegs is the catch-all: any error not already compensated marks every
// persisted non-terminal leg FAILED with the best available classification.
func (o *Orchestrator) failLegs(ctx context.Context, log *slog.Logger, legs []*leg, cause error) (domain.RunResult, error) {
	code := exchange.KindOf(cause)
	for _, l := range legs {
		if l.tx.State.Terminal() {
			continue
		}
		o.mustTransition(ctx, log, l, domain.TxStateFailed, code)
	}
	return domain.FailureResult(), fmt.Errorf("orchestrator: %w", cause)
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
