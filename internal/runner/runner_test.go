package runner

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/exchange"
)

type fakeRuleStore struct {
	updated        *domain.Rule
	updatedVersion int64
	updateErr      error
}

func (f *fakeRuleStore) GetByID(context.Context, string) (domain.Rule, error) {
	return domain.Rule{}, domain.ErrNotFound
}

func (f *fakeRuleStore) ListByStatus(context.Context, domain.RuleStatus) ([]domain.Rule, error) {
	return nil, nil
}

func (f *fakeRuleStore) Update(_ context.Context, rule domain.Rule, expectedVersion int64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = &rule
	f.updatedVersion = expectedVersion
	return nil
}

type fakeCreds struct{ err error }

func (f *fakeCreds) Credentials(context.Context, string, string) (exchange.Credentials, error) {
	if f.err != nil {
		return exchange.Credentials{}, f.err
	}
	return exchange.Credentials{APIKey: "k", APISecret: "s"}, nil
}

type fakeInvoker struct {
	result domain.RunResult
	err    error
	calls  int
}

func (f *fakeInvoker) Execute(context.Context, domain.Rule, exchange.Exchange, exchange.Exchange) (domain.RunResult, error) {
	f.calls++
	return f.result, f.err
}

// stubExchange satisfies exchange.Exchange; the invoker is faked so none of
// these methods run.
type stubExchange struct{ name string }

func (s *stubExchange) Name() string                                  { return s.name }
func (s *stubExchange) MinTradableAmount() float64                    { return 0.001 }
func (s *stubExchange) FeeRate(context.Context) (float64, error)      { return 0, nil }
func (s *stubExchange) Balances(context.Context) (domain.Balance, error) {
	return domain.Balance{}, nil
}
func (s *stubExchange) PlaceOrder(context.Context, domain.OrderProcess, domain.OrderType, float64, float64) (string, error) {
	return "", nil
}
func (s *stubExchange) IsFilled(context.Context, string) (bool, error)  { return false, nil }
func (s *stubExchange) Cancel(context.Context, string) (string, error)  { return "", nil }
func (s *stubExchange) Board(context.Context) (domain.OrderBook, error) {
	return domain.OrderBook{}, nil
}

func testRegistry() *exchange.Registry {
	reg := exchange.NewRegistry()
	reg.Register(exchange.VenueBitflyer, func(exchange.Credentials, exchange.Pair) (exchange.Exchange, error) {
		return &stubExchange{name: "bitflyer"}, nil
	})
	reg.Register(exchange.VenueZaif, func(exchange.Credentials, exchange.Pair) (exchange.Exchange, error) {
		return &stubExchange{name: "zaif"}, nil
	})
	return reg
}

func availableRule() domain.Rule {
	return domain.Rule{
		UserID:        "u1",
		RuleID:        "r1",
		CoinUnit:      "btc",
		CurrencyUnit:  "jpy",
		OrderType:     domain.OrderTypeLimit,
		AssetRange:    0.5,
		OneSiteName:   "bitflyer",
		OtherSiteName: "zaif",
		TotalProfit:   100,
		Counts:        domain.RuleCounts{ExecutionCount: 3, SuccessCount: 2, FailureCount: 1},
		Status:        domain.RuleStatusAvailable,
		Version:       7,
	}
}

func TestRunRejectsUnavailableRule(t *testing.T) {
	rule := availableRule()
	rule.Status = domain.RuleStatusLocked

	r := New(&fakeRuleStore{}, &fakeCreds{}, testRegistry(), &fakeInvoker{}, slog.Default())

	_, err := r.Run(t.Context(), rule)
	require.ErrorIs(t, err, domain.ErrRuleUnavailable)
}

func TestRunFoldsDeltaIntoAggregate(t *testing.T) {
	store := &fakeRuleStore{}
	invoker := &fakeInvoker{result: domain.SuccessResult(42)}
	r := New(store, &fakeCreds{}, testRegistry(), invoker, slog.Default())

	res, err := r.Run(t.Context(), availableRule())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, invoker.calls)

	require.NotNil(t, store.updated)
	assert.Equal(t, 142.0, store.updated.TotalProfit)
	assert.Equal(t, int64(4), store.updated.Counts.ExecutionCount)
	assert.Equal(t, int64(3), store.updated.Counts.SuccessCount)
	assert.Equal(t, int64(1), store.updated.Counts.FailureCount)
	// CAS against the version the rule was loaded with.
	assert.Equal(t, int64(7), store.updatedVersion)
}

func TestRunRecordsFailureOutcomes(t *testing.T) {
	store := &fakeRuleStore{}
	invoker := &fakeInvoker{
		result: domain.FailureResult(),
		err:    errors.New("sell leg unfilled"),
	}
	r := New(store, &fakeCreds{}, testRegistry(), invoker, slog.Default())

	res, err := r.Run(t.Context(), availableRule())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailure, res.Outcome)

	require.NotNil(t, store.updated)
	assert.Equal(t, 100.0, store.updated.TotalProfit)
	assert.Equal(t, int64(2), store.updated.Counts.FailureCount)
}

func TestRunSurfacesVersionConflict(t *testing.T) {
	store := &fakeRuleStore{updateErr: domain.ErrVersionConflict}
	r := New(store, &fakeCreds{}, testRegistry(), &fakeInvoker{result: domain.SuccessResult(0)}, slog.Default())

	_, err := r.Run(t.Context(), availableRule())
	require.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestRunFailsOnUnknownVenue(t *testing.T) {
	rule := availableRule()
	rule.OneSiteName = "mtgox"

	r := New(&fakeRuleStore{}, &fakeCreds{}, testRegistry(), &fakeInvoker{}, slog.Default())

	_, err := r.Run(t.Context(), rule)
	require.ErrorIs(t, err, domain.ErrUnknownVenue)
}

func TestRunFailsWhenCredentialsMissing(t *testing.T) {
	r := New(&fakeRuleStore{}, &fakeCreds{err: domain.ErrNotFound}, testRegistry(), &fakeInvoker{}, slog.Default())

	_, err := r.Run(t.Context(), availableRule())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
