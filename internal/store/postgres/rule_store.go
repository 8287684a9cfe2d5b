package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keidrun/coinietrade/internal/domain"
)

// RuleStore implements domain.RuleStore using PostgreSQL.
type RuleStore struct {
	pool *pgxpool.Pool
}

// NewRuleStore creates a new RuleStore.
func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

const ruleColumns = `rule_id, user_id, strategy, coin_unit, currency_unit, order_type,
	asset_range, asset_min_limit, buy_weight_rate, sell_weight_rate, max_failed_limit,
	one_site_name, other_site_name, total_profit,
	execution_count, success_count, failure_count, cancellation_count,
	status, modified_at, version`

// GetByID returns a rule by its primary key.
func (s *RuleStore) GetByID(ctx context.Context, ruleID string) (domain.Rule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE rule_id = $1`, ruleID)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rule{}, domain.ErrNotFound
		}
		return domain.Rule{}, fmt.Errorf("postgres: get rule %s: %w", ruleID, err)
	}
	return r, nil
}

// ListByStatus returns every rule in the given lifecycle state.
func (s *RuleStore) ListByStatus(ctx context.Context, status domain.RuleStatus) ([]domain.Rule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE status = $1 ORDER BY rule_id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list rules by status %s: %w", status, err)
	}
	defer rows.Close()

	var list []domain.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan rule: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// Update writes the rule's mutable fields under compare-and-swap: the write
// applies only when the stored version equals expectedVersion, bumping the
// version by one. A missing row yields ErrNotFound; a version mismatch
// yields ErrVersionConflict with no partial change.
func (s *RuleStore) Update(ctx context.Context, rule domain.Rule, expectedVersion int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rules SET
			strategy = $2, coin_unit = $3, currency_unit = $4, order_type = $5,
			asset_range = $6, asset_min_limit = $7, buy_weight_rate = $8, sell_weight_rate = $9,
			max_failed_limit = $10, one_site_name = $11, other_site_name = $12,
			total_profit = $13, execution_count = $14, success_count = $15,
			failure_count = $16, cancellation_count = $17, status = $18,
			modified_at = NOW(), version = version + 1
		WHERE rule_id = $1 AND version = $19`,
		rule.RuleID, string(rule.Strategy), rule.CoinUnit, rule.CurrencyUnit, string(rule.OrderType),
		rule.AssetRange, rule.AssetMinLimit, rule.BuyWeightRate, rule.SellWeightRate,
		rule.MaxFailedLimit, rule.OneSiteName, rule.OtherSiteName,
		rule.TotalProfit, rule.Counts.ExecutionCount, rule.Counts.SuccessCount,
		rule.Counts.FailureCount, rule.Counts.CancellationCount, string(rule.Status),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("postgres: update rule %s: %w", rule.RuleID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM rules WHERE rule_id = $1)`, rule.RuleID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: update rule %s: %w", rule.RuleID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (domain.Rule, error) {
	var r domain.Rule
	var strategy, orderType, status string
	err := row.Scan(
		&r.RuleID, &r.UserID, &strategy, &r.CoinUnit, &r.CurrencyUnit, &orderType,
		&r.AssetRange, &r.AssetMinLimit, &r.BuyWeightRate, &r.SellWeightRate, &r.MaxFailedLimit,
		&r.OneSiteName, &r.OtherSiteName, &r.TotalProfit,
		&r.Counts.ExecutionCount, &r.Counts.SuccessCount, &r.Counts.FailureCount, &r.Counts.CancellationCount,
		&status, &r.ModifiedAt, &r.Version,
	)
	if err != nil {
		return domain.Rule{}, err
	}
	r.Strategy = domain.StrategyTag(strategy)
	r.OrderType = domain.OrderType(orderType)
	r.Status = domain.RuleStatus(status)
	return r, nil
}

// Compile-time interface check.
var _ domain.RuleStore = (*RuleStore)(nil)
