package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
)

// Seen reports whether the event occurrence has been committed before.
func (s *Store) Seen(ctx context.Context, txHash string, logIndex uint32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.db == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(txHash) == "" {
		return false, fmt.Errorf("transaction hash is required")
	}

	var found int
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM applied_events WHERE tx_hash = ? AND log_index = ?`,
		txHash,
		int64(logIndex),
	)
	err := row.Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check applied event: %w", err)
	}
	return true, nil
}

// MarkSeen records a committed event occurrence. Re-marking the same
// occurrence is a no-op so commits stay idempotent under replay.
func (s *Store) MarkSeen(ctx context.Context, e storage.AppliedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(e.TxHash) == "" {
		return fmt.Errorf("transaction hash is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO applied_events (tx_hash, log_index, block_number, applied_at)
		 VALUES (?, ?, ?, ?)`,
		e.TxHash,
		int64(e.LogIndex),
		int64(e.BlockNumber),
		toMillis(e.AppliedAt),
	)
	if err != nil {
		return fmt.Errorf("mark applied event: %w", err)
	}
	return nil
}
