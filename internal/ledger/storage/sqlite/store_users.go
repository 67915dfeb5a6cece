package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
)

// PutUser upserts a user record.
func (s *Store) PutUser(ctx context.Context, u storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if u.CarbonCredits == nil {
		return fmt.Errorf("user carbon credits are required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, carbon_credits, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     carbon_credits = excluded.carbon_credits,
		     updated_at = excluded.updated_at`,
		u.ID,
		bigToText(u.CarbonCredits),
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser fetches a user record by id.
func (s *Store) GetUser(ctx context.Context, id string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.UserRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.UserRecord{}, fmt.Errorf("user id is required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, carbon_credits, created_at, updated_at FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

// EnsureUser atomically creates the user with a zero balance when absent and
// returns the stored record either way. The insert is a no-op for existing
// rows, so a concurrent or earlier balance is never overwritten.
func (s *Store) EnsureUser(ctx context.Context, id string, createdAt time.Time) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.UserRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.UserRecord{}, fmt.Errorf("user id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, carbon_credits, created_at, updated_at)
		 VALUES (?, '0', ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id,
		toMillis(createdAt),
		toMillis(createdAt),
	)
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("ensure user: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, carbon_credits, created_at, updated_at FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (storage.UserRecord, error) {
	var u storage.UserRecord
	var credits string
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &credits, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	u.CarbonCredits, err = bigFromText(credits)
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}
