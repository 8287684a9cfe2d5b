package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/keidrun/coinietrade/internal/domain"
)

// archiveBatchSize bounds how many ledger rows one archive object holds.
const archiveBatchSize = 500

// Archiver exports terminal transaction ledger rows to object storage as
// JSONL batches. Rows stay in PostgreSQL; the archive is an append-only
// long-term copy keyed by export time.
type Archiver struct {
	ledger domain.TransactionStore
	writer *Writer
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.LedgerArchiver = (*Archiver)(nil)

// NewArchiver creates an Archiver that reads terminal rows from ledger and
// writes them through writer.
func NewArchiver(ledger domain.TransactionStore, writer *Writer, logger *slog.Logger) *Archiver {
	return &Archiver{
		ledger: ledger,
		writer: writer,
		logger: logger.With("component", "archiver"),
		now:    time.Now,
	}
}

// archivedTransaction is the JSONL representation of one ledger row.
type archivedTransaction struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	RuleID             string    `json:"rule_id"`
	SiteName           string    `json:"site_name"`
	OrderProcess       string    `json:"order_process"`
	OrderType          string    `json:"order_type"`
	OrderPrice         float64   `json:"order_price"`
	OrderAmount        float64   `json:"order_amount"`
	TransactionFeeRate float64   `json:"transaction_fee_rate"`
	State              string    `json:"state"`
	ExecutionTime      time.Time `json:"execution_time"`
	ErrorCode          string    `json:"error_code,omitempty"`
	ModifiedAt         time.Time `json:"modified_at"`
	Version            int64     `json:"version"`
}

// ArchiveBefore exports every terminal ledger row modified before cutoff,
// batching into JSONL objects under ledger/<date>/. It returns the number of
// rows archived. Repeated runs over the same window re-export the same rows;
// object keys include a timestamp so nothing is overwritten.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	rows, err := a.ledger.ListTerminalBefore(ctx, cutoff, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list terminal transactions: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, tx := range rows {
		rec := archivedTransaction{
			ID:                 tx.ID,
			UserID:             tx.UserID,
			RuleID:             tx.RuleID,
			SiteName:           tx.SiteName,
			OrderProcess:       string(tx.OrderProcess),
			OrderType:          string(tx.OrderType),
			OrderPrice:         tx.OrderPrice,
			OrderAmount:        tx.OrderAmount,
			TransactionFeeRate: tx.TransactionFeeRate,
			State:              string(tx.State),
			ExecutionTime:      tx.ExecutionTime,
			ErrorCode:          tx.ErrorCode,
			ModifiedAt:         tx.ModifiedAt,
			Version:            tx.Version,
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: encode transaction %s: %w", tx.ID, err)
		}
	}

	now := a.now().UTC()
	key := fmt.Sprintf("ledger/%s/transactions-%s.jsonl",
		now.Format("2006-01-02"), now.Format("20060102T150405Z"))

	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return 0, err
	}

	a.logger.Info("ledger batch archived",
		"key", key,
		"rows", len(rows),
		"cutoff", cutoff,
	)
	return len(rows), nil
}
