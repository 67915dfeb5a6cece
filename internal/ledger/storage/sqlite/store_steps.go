package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
)

// PutStep persists a supply-chain checkpoint. Checkpoints are append-only;
// re-inserting the same id overwrites with identical data on replay.
func (s *Store) PutStep(ctx context.Context, step storage.SupplyChainStepRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(step.ID) == "" {
		return fmt.Errorf("step id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO supply_chain_steps (id, product_id, stakeholder, location, timestamp)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     product_id = excluded.product_id,
		     stakeholder = excluded.stakeholder,
		     location = excluded.location,
		     timestamp = excluded.timestamp`,
		step.ID,
		step.ProductID,
		step.Stakeholder,
		step.Location,
		toMillis(step.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("put supply chain step: %w", err)
	}
	return nil
}

// GetStep fetches a supply-chain checkpoint by id.
func (s *Store) GetStep(ctx context.Context, id string) (storage.SupplyChainStepRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SupplyChainStepRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.SupplyChainStepRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.SupplyChainStepRecord{}, fmt.Errorf("step id is required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, stakeholder, location, timestamp FROM supply_chain_steps WHERE id = ?`,
		id,
	)
	var step storage.SupplyChainStepRecord
	var timestamp int64
	err := row.Scan(&step.ID, &step.ProductID, &step.Stakeholder, &step.Location, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SupplyChainStepRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SupplyChainStepRecord{}, fmt.Errorf("get supply chain step: %w", err)
	}
	step.Timestamp = fromMillis(timestamp)
	return step, nil
}

// ListStepsByProduct returns all checkpoints for a product in timestamp order.
func (s *Store) ListStepsByProduct(ctx context.Context, productID string) ([]storage.SupplyChainStepRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("product id is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, stakeholder, location, timestamp
		 FROM supply_chain_steps
		 WHERE product_id = ?
		 ORDER BY timestamp, id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list supply chain steps: %w", err)
	}
	defer rows.Close()

	var steps []storage.SupplyChainStepRecord
	for rows.Next() {
		var step storage.SupplyChainStepRecord
		var timestamp int64
		if err := rows.Scan(&step.ID, &step.ProductID, &step.Stakeholder, &step.Location, &timestamp); err != nil {
			return nil, fmt.Errorf("scan supply chain step: %w", err)
		}
		step.Timestamp = fromMillis(timestamp)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
