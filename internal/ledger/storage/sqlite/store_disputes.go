package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
)

// PutDispute upserts a dispute record.
func (s *Store) PutDispute(ctx context.Context, d storage.DisputeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("dispute id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO disputes (id, product_id, initiator, resolved, resolution, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     product_id = excluded.product_id,
		     initiator = excluded.initiator,
		     resolved = excluded.resolved,
		     resolution = excluded.resolution,
		     updated_at = excluded.updated_at`,
		d.ID,
		d.ProductID,
		d.Initiator,
		boolToInt(d.Resolved),
		d.Resolution,
		toMillis(d.CreatedAt),
		toMillis(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put dispute: %w", err)
	}
	return nil
}

// GetDispute fetches a dispute record by id.
func (s *Store) GetDispute(ctx context.Context, id string) (storage.DisputeRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DisputeRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.DisputeRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.DisputeRecord{}, fmt.Errorf("dispute id is required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, initiator, resolved, resolution, created_at, updated_at FROM disputes WHERE id = ?`,
		id,
	)
	var d storage.DisputeRecord
	var resolved int
	var createdAt, updatedAt int64
	err := row.Scan(&d.ID, &d.ProductID, &d.Initiator, &resolved, &d.Resolution, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.DisputeRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.DisputeRecord{}, fmt.Errorf("get dispute: %w", err)
	}
	d.Resolved = resolved != 0
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return d, nil
}
