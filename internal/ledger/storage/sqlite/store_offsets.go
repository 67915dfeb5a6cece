package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
)

// PutOffset persists a carbon offset log entry.
func (s *Store) PutOffset(ctx context.Context, o storage.CarbonOffsetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("offset id is required")
	}
	if o.Amount == nil {
		return fmt.Errorf("offset amount is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO carbon_offsets (id, user_address, amount, timestamp)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     user_address = excluded.user_address,
		     amount = excluded.amount,
		     timestamp = excluded.timestamp`,
		o.ID,
		o.User,
		bigToText(o.Amount),
		toMillis(o.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("put carbon offset: %w", err)
	}
	return nil
}

// GetOffset fetches a carbon offset log entry by id.
func (s *Store) GetOffset(ctx context.Context, id string) (storage.CarbonOffsetRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CarbonOffsetRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.CarbonOffsetRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.CarbonOffsetRecord{}, fmt.Errorf("offset id is required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_address, amount, timestamp FROM carbon_offsets WHERE id = ?`,
		id,
	)
	var o storage.CarbonOffsetRecord
	var amount string
	var timestamp int64
	err := row.Scan(&o.ID, &o.User, &amount, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.CarbonOffsetRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.CarbonOffsetRecord{}, fmt.Errorf("get carbon offset: %w", err)
	}
	o.Amount, err = bigFromText(amount)
	if err != nil {
		return storage.CarbonOffsetRecord{}, fmt.Errorf("get carbon offset: %w", err)
	}
	o.Timestamp = fromMillis(timestamp)
	return o, nil
}

// ListOffsetsByUser returns all offsets credited to a user in timestamp order.
func (s *Store) ListOffsetsByUser(ctx context.Context, user string) ([]storage.CarbonOffsetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(user) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_address, amount, timestamp
		 FROM carbon_offsets
		 WHERE user_address = ?
		 ORDER BY timestamp, id`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("list carbon offsets: %w", err)
	}
	defer rows.Close()

	var offsets []storage.CarbonOffsetRecord
	for rows.Next() {
		var o storage.CarbonOffsetRecord
		var amount string
		var timestamp int64
		if err := rows.Scan(&o.ID, &o.User, &amount, &timestamp); err != nil {
			return nil, fmt.Errorf("scan carbon offset: %w", err)
		}
		o.Amount, err = bigFromText(amount)
		if err != nil {
			return nil, fmt.Errorf("scan carbon offset: %w", err)
		}
		o.Timestamp = fromMillis(timestamp)
		offsets = append(offsets, o)
	}
	return offsets, rows.Err()
}
