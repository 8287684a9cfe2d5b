package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStateTerminal(t *testing.T) {
	assert.False(t, TxStateInitial.Terminal())
	assert.False(t, TxStateInProgress.Terminal())
	assert.True(t, TxStateSucceeded.Terminal())
	assert.True(t, TxStateCanceled.Terminal())
	assert.True(t, TxStateFailed.Terminal())
}

func TestTransactionStateTransitions(t *testing.T) {
	// From INITIAL.
	assert.True(t, TxStateInitial.CanTransition(TxStateInProgress))
	assert.True(t, TxStateInitial.CanTransition(TxStateCanceled))
	assert.True(t, TxStateInitial.CanTransition(TxStateFailed))
	assert.False(t, TxStateInitial.CanTransition(TxStateSucceeded))
	assert.False(t, TxStateInitial.CanTransition(TxStateInitial))

	// From IN_PROGRESS.
	assert.True(t, TxStateInProgress.CanTransition(TxStateSucceeded))
	assert.True(t, TxStateInProgress.CanTransition(TxStateCanceled))
	assert.True(t, TxStateInProgress.CanTransition(TxStateFailed))
	assert.False(t, TxStateInProgress.CanTransition(TxStateInitial))
	assert.False(t, TxStateInProgress.CanTransition(TxStateInProgress))

	// Terminal states never transition.
	for _, s := range []TransactionState{TxStateSucceeded, TxStateCanceled, TxStateFailed} {
		for _, next := range []TransactionState{TxStateInitial, TxStateInProgress, TxStateSucceeded, TxStateCanceled, TxStateFailed} {
			assert.False(t, s.CanTransition(next), "%s -> %s", s, next)
		}
	}
}

func TestRuleAvailability(t *testing.T) {
	r := Rule{Status: RuleStatusAvailable}
	assert.True(t, r.Available())

	for _, s := range []RuleStatus{RuleStatusUnavailable, RuleStatusLocked, RuleStatusDeleted} {
		r.Status = s
		assert.False(t, r.Available(), string(s))
	}
}

func TestRuleShouldLock(t *testing.T) {
	r := Rule{MaxFailedLimit: 3, Counts: RuleCounts{FailureCount: 2}}
	assert.False(t, r.ShouldLock())

	r.Counts.FailureCount = 3
	assert.True(t, r.ShouldLock())

	// Zero limit disables the lockout.
	r.MaxFailedLimit = 0
	r.Counts.FailureCount = 100
	assert.False(t, r.ShouldLock())
}

func TestRuleCountsAdd(t *testing.T) {
	base := RuleCounts{ExecutionCount: 5, SuccessCount: 3, FailureCount: 1, CancellationCount: 1}
	sum := base.Add(RuleCounts{ExecutionCount: 1, FailureCount: 1})

	assert.Equal(t, int64(6), sum.ExecutionCount)
	assert.Equal(t, int64(3), sum.SuccessCount)
	assert.Equal(t, int64(2), sum.FailureCount)
	assert.Equal(t, int64(1), sum.CancellationCount)
	// Add does not mutate the receiver.
	assert.Equal(t, int64(5), base.ExecutionCount)
}
