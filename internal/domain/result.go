package domain

// RunOutcome classifies one orchestrator invocation.
type RunOutcome string

const (
	// OutcomeSuccess covers both a fully filled pair and the vacuous
	// successes (no profitable target, or a leg already in progress).
	OutcomeSuccess      RunOutcome = "success"
	OutcomeFailure      RunOutcome = "failure"
	OutcomeCancellation RunOutcome = "cancellation"
)

// RunResult is the delta one invocation contributes to its rule's aggregate.
// ExecutionCount is always 1 and exactly one of the other counters is 1.
type RunResult struct {
	Outcome          RunOutcome
	AdditionalProfit float64
	AdditionalCounts RuleCounts
}

// SuccessResult builds a success delta carrying the given profit.
func SuccessResult(profit float64) RunResult {
	return RunResult{
		Outcome:          OutcomeSuccess,
		AdditionalProfit: profit,
		AdditionalCounts: RuleCounts{ExecutionCount: 1, SuccessCount: 1},
	}
}

// FailureResult builds a failure delta.
func FailureResult() RunResult {
	return RunResult{
		Outcome:          OutcomeFailure,
		AdditionalCounts: RuleCounts{ExecutionCount: 1, FailureCount: 1},
	}
}

// CancellationResult builds a cancellation delta.
func CancellationResult() RunResult {
	return RunResult{
		Outcome:          OutcomeCancellation,
		AdditionalCounts: RuleCounts{ExecutionCount: 1, CancellationCount: 1},
	}
}
