package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
	"github.com/wandeoki/afritrace/internal/ledger/storage/cursor"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// PutProduct upserts a product record.
func (s *Store) PutProduct(ctx context.Context, p storage.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("product id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, producer, is_certified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     name = excluded.name,
		     producer = excluded.producer,
		     is_certified = excluded.is_certified,
		     updated_at = excluded.updated_at`,
		p.ID,
		p.Name,
		p.Producer,
		boolToInt(p.IsCertified),
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// GetProduct fetches a product record by id.
func (s *Store) GetProduct(ctx context.Context, id string) (storage.ProductRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProductRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.ProductRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.ProductRecord{}, fmt.Errorf("product id is required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, producer, is_certified, created_at, updated_at FROM products WHERE id = ?`,
		id,
	)
	return scanProduct(row)
}

// ListRecentProducts returns a page of products ordered by creation time
// descending, id descending as tiebreak.
func (s *Store) ListRecentProducts(ctx context.Context, pageSize int, pageToken string) (storage.ProductPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProductPage{}, err
	}
	if s == nil || s.db == nil {
		return storage.ProductPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var rows *sql.Rows
	var err error
	if pageToken == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, name, producer, is_certified, created_at, updated_at
			 FROM products
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			pageSize+1,
		)
	} else {
		var c cursor.Cursor
		c, err = cursor.Decode(pageToken)
		if err != nil {
			return storage.ProductPage{}, fmt.Errorf("decode page token: %w", err)
		}
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, name, producer, is_certified, created_at, updated_at
			 FROM products
			 WHERE created_at < ? OR (created_at = ? AND id < ?)
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			c.CreatedAtMillis,
			c.CreatedAtMillis,
			c.ID,
			pageSize+1,
		)
	}
	if err != nil {
		return storage.ProductPage{}, fmt.Errorf("list recent products: %w", err)
	}
	defer rows.Close()

	page := storage.ProductPage{Products: make([]storage.ProductRecord, 0, pageSize)}
	for rows.Next() {
		if len(page.Products) == pageSize {
			last := page.Products[pageSize-1]
			token, err := cursor.Encode(cursor.Cursor{
				CreatedAtMillis: toMillis(last.CreatedAt),
				ID:              last.ID,
			})
			if err != nil {
				return storage.ProductPage{}, err
			}
			page.NextPageToken = token
			break
		}
		p, err := scanProductRows(rows)
		if err != nil {
			return storage.ProductPage{}, err
		}
		page.Products = append(page.Products, p)
	}
	if err := rows.Err(); err != nil {
		return storage.ProductPage{}, fmt.Errorf("list recent products: %w", err)
	}
	return page, nil
}

func scanProduct(row *sql.Row) (storage.ProductRecord, error) {
	var p storage.ProductRecord
	var certified int
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.Name, &p.Producer, &certified, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ProductRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ProductRecord{}, fmt.Errorf("get product: %w", err)
	}
	p.IsCertified = certified != 0
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func scanProductRows(rows *sql.Rows) (storage.ProductRecord, error) {
	var p storage.ProductRecord
	var certified int
	var createdAt, updatedAt int64
	if err := rows.Scan(&p.ID, &p.Name, &p.Producer, &certified, &createdAt, &updatedAt); err != nil {
		return storage.ProductRecord{}, fmt.Errorf("scan product: %w", err)
	}
	p.IsCertified = certified != 0
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
