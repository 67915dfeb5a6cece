package storage

import (
	"context"
	"math/big"
	"time"

	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ProductRecord captures the projected state of one product token.
// Products are created once and mutated only by certification.
type ProductRecord struct {
	ID          string
	Name        string
	Producer    string
	IsCertified bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SupplyChainStepRecord is one append-only supply-chain checkpoint.
// The id is productID + "-" + block time, which is chronologically unique
// per product.
type SupplyChainStepRecord struct {
	ID          string
	ProductID   string
	Stakeholder string
	Location    string
	Timestamp   time.Time
}

// DisputeRecord captures the projected dispute lifecycle. Resolved flips
// false to true exactly once; Resolution is set only on that transition.
type DisputeRecord struct {
	ID         string
	ProductID  string
	Initiator  string
	Resolved   bool
	Resolution string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CarbonOffsetRecord is one append-only offset log entry. The id is the
// event's txHash + "-" + logIndex, globally unique per occurrence.
type CarbonOffsetRecord struct {
	ID        string
	User      string
	Amount    *big.Int
	Timestamp time.Time
}

// UserRecord accumulates carbon credits per case-normalized address.
// CarbonCredits always equals the sum of applied offset amounts.
type UserRecord struct {
	ID            string
	CarbonCredits *big.Int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AppliedEvent records one committed event occurrence for idempotent replay.
type AppliedEvent struct {
	TxHash      string
	LogIndex    uint32
	BlockNumber uint64
	AppliedAt   time.Time
}

// ProductPage describes a page of product records.
type ProductPage struct {
	Products      []ProductRecord
	NextPageToken string
}

// ProductStore owns the product read model.
type ProductStore interface {
	PutProduct(ctx context.Context, p ProductRecord) error
	GetProduct(ctx context.Context, id string) (ProductRecord, error)
	// ListRecentProducts returns a page of products ordered by creation time
	// descending, starting after the page token.
	ListRecentProducts(ctx context.Context, pageSize int, pageToken string) (ProductPage, error)
}

// SupplyChainStepStore owns the append-only supply-chain checkpoint log.
type SupplyChainStepStore interface {
	PutStep(ctx context.Context, s SupplyChainStepRecord) error
	GetStep(ctx context.Context, id string) (SupplyChainStepRecord, error)
	// ListStepsByProduct returns all checkpoints for a product in timestamp order.
	ListStepsByProduct(ctx context.Context, productID string) ([]SupplyChainStepRecord, error)
}

// DisputeStore owns the dispute read model.
type DisputeStore interface {
	PutDispute(ctx context.Context, d DisputeRecord) error
	GetDispute(ctx context.Context, id string) (DisputeRecord, error)
}

// CarbonOffsetStore owns the append-only offset log.
type CarbonOffsetStore interface {
	PutOffset(ctx context.Context, o CarbonOffsetRecord) error
	GetOffset(ctx context.Context, id string) (CarbonOffsetRecord, error)
	// ListOffsetsByUser returns all offsets credited to a user in timestamp order.
	ListOffsetsByUser(ctx context.Context, user string) ([]CarbonOffsetRecord, error)
}

// UserStore owns the per-address credit accumulator.
type UserStore interface {
	PutUser(ctx context.Context, u UserRecord) error
	GetUser(ctx context.Context, id string) (UserRecord, error)
	// EnsureUser atomically creates the user with a zero balance when absent
	// and returns the stored record either way. An existing balance is never
	// overwritten.
	EnsureUser(ctx context.Context, id string, createdAt time.Time) (UserRecord, error)
}

// AppliedEventStore owns the idempotency seen-set of committed events.
type AppliedEventStore interface {
	Seen(ctx context.Context, txHash string, logIndex uint32) (bool, error)
	MarkSeen(ctx context.Context, e AppliedEvent) error
}

// Bundle groups the entity stores the projection layer writes through.
type Bundle struct {
	Products ProductStore
	Steps    SupplyChainStepStore
	Disputes DisputeStore
	Offsets  CarbonOffsetStore
	Users    UserStore
	Applied  AppliedEventStore
}

// Validate reports the first unset store, so wiring mistakes fail at startup
// instead of on the first event of that kind.
func (b Bundle) Validate() error {
	switch {
	case b.Products == nil:
		return apperrors.New(apperrors.CodeStorageFailure, "product store is not configured")
	case b.Steps == nil:
		return apperrors.New(apperrors.CodeStorageFailure, "supply chain step store is not configured")
	case b.Disputes == nil:
		return apperrors.New(apperrors.CodeStorageFailure, "dispute store is not configured")
	case b.Offsets == nil:
		return apperrors.New(apperrors.CodeStorageFailure, "carbon offset store is not configured")
	case b.Users == nil:
		return apperrors.New(apperrors.CodeStorageFailure, "user store is not configured")
	case b.Applied == nil:
		return apperrors.New(apperrors.CodeStorageFailure, "applied event store is not configured")
	}
	return nil
}

// TxRunner executes work against a transactional view of the stores.
// Mutations made by fn become visible all at once on commit; an error from
// fn rolls every write back. The projector relies on this to persist entity
// mutations and the idempotency mark as a single unit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Bundle) error) error
	// Stores returns the non-transactional bundle for read paths.
	Stores() Bundle
}
