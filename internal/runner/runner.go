// Package runner loads a rule together with its decrypted venue credentials,
// builds the two adapters, invokes the orchestrator exactly once, and folds
// the outcome back into the rule's aggregate under compare-and-swap.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/exchange"
)

// Invoker is the orchestrator surface the runner depends on.
type Invoker interface {
	Execute(ctx context.Context, rule domain.Rule, one, other exchange.Exchange) (domain.RunResult, error)
}

// CredentialSource resolves the decrypted credential pair for one of a
// rule's venues. Plaintext secrets exist only for the duration of the run.
type CredentialSource interface {
	Credentials(ctx context.Context, userID, siteName string) (exchange.Credentials, error)
}

// Runner executes one rule end to end.
type Runner struct {
	rules    domain.RuleStore
	creds    CredentialSource
	registry *exchange.Registry
	invoker  Invoker
	logger   *slog.Logger
}

// New creates a Runner.
func New(rules domain.RuleStore, creds CredentialSource, registry *exchange.Registry, invoker Invoker, logger *slog.Logger) *Runner {
	return &Runner{
		rules:    rules,
		creds:    creds,
		registry: registry,
		invoker:  invoker,
		logger:   logger.With(slog.String("component", "runner")),
	}
}

// Run invokes the rule once and applies the resulting profit and counter
// deltas to the rule aggregate. The aggregate write is compare-and-swap
// against the version the rule was loaded with; a conflicting concurrent
// write surfaces as domain.ErrVersionConflict and is not retried here.
func (r *Runner) Run(ctx context.Context, rule domain.Rule) (domain.RunResult, error) {
	if !rule.Available() {
		return domain.RunResult{}, fmt.Errorf("runner: rule %s: %w", rule.RuleID, domain.ErrRuleUnavailable)
	}

	log := r.logger.With(
		slog.String("rule_id", rule.RuleID),
		slog.String("user_id", rule.UserID),
	)

	one, err := r.buildAdapter(ctx, rule, rule.OneSiteName)
	if err != nil {
		return domain.RunResult{}, err
	}
	other, err := r.buildAdapter(ctx, rule, rule.OtherSiteName)
	if err != nil {
		return domain.RunResult{}, err
	}

	result, runErr := r.invoker.Execute(ctx, rule, one, other)
	if runErr != nil {
		log.WarnContext(ctx, "orchestration ended with error",
			slog.String("outcome", string(result.Outcome)),
			slog.String("error", runErr.Error()),
		)
	}

	// Fold the delta into the aggregate regardless of outcome: every
	// invocation counts exactly once.
	updated := rule
	updated.TotalProfit += result.AdditionalProfit
	updated.Counts = rule.Counts.Add(result.AdditionalCounts)
	updated.ModifiedAt = time.Now().UTC()
	if err := r.rules.Update(ctx, updated, rule.Version); err != nil {
		return result, fmt.Errorf("runner: update rule %s aggregate: %w", rule.RuleID, err)
	}

	log.InfoContext(ctx, "rule run recorded",
		slog.String("outcome", string(result.Outcome)),
		slog.Float64("additional_profit", result.AdditionalProfit),
		slog.Int64("execution_count", updated.Counts.ExecutionCount),
	)
	return result, nil
}

// buildAdapter resolves credentials and constructs the venue adapter through
// the typed registry.
func (r *Runner) buildAdapter(ctx context.Context, rule domain.Rule, siteName string) (exchange.Exchange, error) {
	creds, err := r.creds.Credentials(ctx, rule.UserID, siteName)
	if err != nil {
		return nil, fmt.Errorf("runner: credentials for %s: %w", siteName, err)
	}
	ex, err := r.registry.Build(siteName, creds, exchange.Pair{
		CoinUnit:     rule.CoinUnit,
		CurrencyUnit: rule.CurrencyUnit,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: build adapter %s: %w", siteName, err)
	}
	return ex, nil
}
