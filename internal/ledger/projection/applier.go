package projection

import (
	"time"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
)

// Applier applies ledger events to projection stores.
//
// An Applier is assembled from a transactional storage.Bundle per apply, so
// every mutation a handler makes shares the commit fate of the idempotency
// mark.
type Applier struct {
	// Products writes the product read model.
	Products storage.ProductStore
	// Steps writes the append-only supply-chain checkpoint log.
	Steps storage.SupplyChainStepStore
	// Disputes writes the dispute read model.
	Disputes storage.DisputeStore
	// Offsets writes the append-only carbon offset log.
	Offsets storage.CarbonOffsetStore
	// Users writes the per-address credit accumulator.
	Users storage.UserStore
}

// newApplier binds an applier to the stores of one transaction.
func newApplier(b storage.Bundle) Applier {
	return Applier{
		Products: b.Products,
		Steps:    b.Steps,
		Disputes: b.Disputes,
		Offsets:  b.Offsets,
		Users:    b.Users,
	}
}

// blockTime converts a ledger block timestamp to the UTC time persisted on
// records.
func blockTime(unixSeconds uint64) time.Time {
	return time.Unix(int64(unixSeconds), 0).UTC()
}
