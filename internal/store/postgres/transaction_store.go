package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keidrun/coinietrade/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const txColumns = `id, user_id, rule_id, site_name, order_process, order_type,
	order_price, order_amount, transaction_fee_rate, state, execution_time,
	error_code, modified_at, version`

// Create inserts a new ledger row.
func (s *TransactionStore) Create(ctx context.Context, tx domain.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (`+txColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		tx.ID, tx.UserID, tx.RuleID, tx.SiteName, string(tx.OrderProcess), string(tx.OrderType),
		tx.OrderPrice, tx.OrderAmount, tx.TransactionFeeRate, string(tx.State), tx.ExecutionTime,
		tx.ErrorCode, tx.ModifiedAt, tx.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// GetByID returns a ledger row by its primary key.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListByRuleAndState returns the rule's ledger rows in the given state. The
// orchestrator's pre-run guard uses this with IN_PROGRESS.
func (s *TransactionStore) ListByRuleAndState(ctx context.Context, ruleID string, state domain.TransactionState) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE rule_id = $1 AND state = $2 ORDER BY execution_time`,
		ruleID, string(state))
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions %s/%s: %w", ruleID, state, err)
	}
	defer rows.Close()

	var list []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		list = append(list, tx)
	}
	return list, rows.Err()
}

// UpdateState moves a row to the given state under compare-and-swap on its
// version. A version mismatch yields ErrVersionConflict; a missing row
// yields ErrNotFound. Rows are never deleted.
func (s *TransactionStore) UpdateState(ctx context.Context, id string, state domain.TransactionState, errorCode string, expectedVersion int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET state = $2, error_code = $3, modified_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $4`,
		id, string(state), errorCode, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("postgres: update transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: update transaction %s: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

// ListTerminalBefore returns up to limit terminal rows whose execution time
// is before cutoff, oldest first. The archiver feeds on this.
func (s *TransactionStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE state IN ('SUCCEEDED', 'CANCELED', 'FAILED') AND execution_time < $1
		ORDER BY execution_time
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal transactions: %w", err)
	}
	defer rows.Close()

	var list []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		list = append(list, tx)
	}
	return list, rows.Err()
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var process, orderType, state string
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.RuleID, &tx.SiteName, &process, &orderType,
		&tx.OrderPrice, &tx.OrderAmount, &tx.TransactionFeeRate, &state, &tx.ExecutionTime,
		&tx.ErrorCode, &tx.ModifiedAt, &tx.Version,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.OrderProcess = domain.OrderProcess(process)
	tx.OrderType = domain.OrderType(orderType)
	tx.State = domain.TransactionState(state)
	return tx, nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
