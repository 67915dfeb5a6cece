// Package query is the read-side facade over the projected supply-chain state.
package query

import (
	"context"
	"strings"

	"github.com/wandeoki/afritrace/internal/ledger/event"
	"github.com/wandeoki/afritrace/internal/ledger/storage"
	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

// Queries answers read requests against the projection stores. All methods
// observe committed state only; the projector never exposes half-applied
// events to readers.
type Queries struct {
	stores storage.Bundle
}

// New builds the query facade over a store bundle.
func New(stores storage.Bundle) (*Queries, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	return &Queries{stores: stores}, nil
}

// Product returns one product by token id.
func (q *Queries) Product(ctx context.Context, id string) (storage.ProductRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ProductRecord{}, apperrors.New(apperrors.CodeNotFound, "product id is required")
	}
	return q.stores.Products.GetProduct(ctx, id)
}

// RecentProducts returns a page of products, newest first. A zero pageSize
// selects the store default; pageToken resumes a previous page.
func (q *Queries) RecentProducts(ctx context.Context, pageSize int, pageToken string) (storage.ProductPage, error) {
	return q.stores.Products.ListRecentProducts(ctx, pageSize, pageToken)
}

// Step returns one supply-chain checkpoint by id.
func (q *Queries) Step(ctx context.Context, id string) (storage.SupplyChainStepRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.SupplyChainStepRecord{}, apperrors.New(apperrors.CodeNotFound, "step id is required")
	}
	return q.stores.Steps.GetStep(ctx, id)
}

// StepsByProduct returns a product's checkpoints in chronological order.
// An unknown product yields an empty history, not an error.
func (q *Queries) StepsByProduct(ctx context.Context, productID string) ([]storage.SupplyChainStepRecord, error) {
	return q.stores.Steps.ListStepsByProduct(ctx, strings.TrimSpace(productID))
}

// Dispute returns one dispute by id.
func (q *Queries) Dispute(ctx context.Context, id string) (storage.DisputeRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.DisputeRecord{}, apperrors.New(apperrors.CodeNotFound, "dispute id is required")
	}
	return q.stores.Disputes.GetDispute(ctx, id)
}

// Offset returns one carbon offset log entry by id.
func (q *Queries) Offset(ctx context.Context, id string) (storage.CarbonOffsetRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.CarbonOffsetRecord{}, apperrors.New(apperrors.CodeNotFound, "offset id is required")
	}
	return q.stores.Offsets.GetOffset(ctx, id)
}

// OffsetsByUser returns a user's offset history in chronological order.
// The address is case-normalized the same way the projector normalizes ids.
func (q *Queries) OffsetsByUser(ctx context.Context, user string) ([]storage.CarbonOffsetRecord, error) {
	return q.stores.Offsets.ListOffsetsByUser(ctx, event.NormalizeAddress(user))
}

// User returns one user balance record by address.
func (q *Queries) User(ctx context.Context, address string) (storage.UserRecord, error) {
	id := event.NormalizeAddress(address)
	if id == "" {
		return storage.UserRecord{}, apperrors.New(apperrors.CodeNotFound, "user address is required")
	}
	return q.stores.Users.GetUser(ctx, id)
}
