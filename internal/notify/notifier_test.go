package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keidrun/coinietrade/internal/domain"
)

// fakeSender records delivered events and can be scripted to fail.
type fakeSender struct {
	name   string
	err    error
	events []Event
}

func (f *fakeSender) Send(_ context.Context, ev Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func testNotifyRule() domain.Rule {
	return domain.Rule{
		RuleID:        "r1",
		CoinUnit:      "btc",
		CurrencyUnit:  "jpy",
		OneSiteName:   "bitflyer",
		OtherSiteName: "zaif",
	}
}

func TestNotifyFiltersByEventKind(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventRunFailure}, slog.Default())

	require.NoError(t, n.Notify(t.Context(), Event{Kind: EventRunSuccess}))
	require.NoError(t, n.Notify(t.Context(), Event{Kind: EventRunFailure}))

	require.Len(t, s.events, 1)
	assert.Equal(t, EventRunFailure, s.events[0].Kind)
}

func TestNotifyEmptyEventListAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())

	require.NoError(t, n.Notify(t.Context(), Event{Kind: EventRunSuccess}))
	require.NoError(t, n.Notify(t.Context(), Event{Kind: EventError}))

	assert.Len(t, s.events, 2)
}

func TestNotifyContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.Default())

	err := n.Notify(t.Context(), Event{Kind: EventRunFailure, Rule: testNotifyRule()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	// The failing sender did not block delivery to the healthy one.
	assert.Len(t, good.events, 1)
}

func TestNotifyRunResultMapsOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		result domain.RunResult
		kind   string
	}{
		{"success with profit", domain.SuccessResult(42), EventRunSuccess},
		{"cancellation", domain.CancellationResult(), EventRunCancellation},
		{"failure", domain.FailureResult(), EventRunFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{name: "fake"}
			n := NewNotifier([]Sender{s}, nil, slog.Default())

			require.NoError(t, n.NotifyRunResult(t.Context(), testNotifyRule(), tt.result))

			require.Len(t, s.events, 1)
			assert.Equal(t, tt.kind, s.events[0].Kind)
			assert.Equal(t, "r1", s.events[0].Rule.RuleID)
			assert.False(t, s.events[0].At.IsZero())
		})
	}
}

func TestNotifyRunResultSkipsVacuousSuccess(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())

	require.NoError(t, n.NotifyRunResult(t.Context(), testNotifyRule(), domain.SuccessResult(0)))

	assert.Empty(t, s.events)
}

func TestNotifyErrorCarriesRuleAndError(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())

	cause := errors.New("db down")
	require.NoError(t, n.NotifyError(t.Context(), testNotifyRule(), cause))

	require.Len(t, s.events, 1)
	assert.Equal(t, EventError, s.events[0].Kind)
	assert.Equal(t, cause, s.events[0].Err)
	assert.Equal(t, "btc/jpy", s.events[0].Pair())
}
