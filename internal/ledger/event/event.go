package event

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the kind of a ledger event.
type Kind string

// Ledger events emitted by the AfriTrace contract.
const (
	// KindProductCreated records the minting of a product token.
	KindProductCreated Kind = "product.created"
	// KindSupplyChainUpdated records a supply-chain checkpoint for a product.
	KindSupplyChainUpdated Kind = "supply_chain.updated"
	// KindProductCertified records the certification of a product.
	KindProductCertified Kind = "product.certified"
	// KindDisputeCreated records the opening of a dispute against a product.
	KindDisputeCreated Kind = "dispute.created"
	// KindDisputeResolved records the resolution of a previously opened dispute.
	KindDisputeResolved Kind = "dispute.resolved"
	// KindCarbonOffseted records a carbon-credit offset granted to a user.
	KindCarbonOffseted Kind = "carbon.offseted"
)

// IsValid reports whether the kind is one of the projected ledger events.
func (k Kind) IsValid() bool {
	switch k {
	case KindProductCreated, KindSupplyChainUpdated, KindProductCertified,
		KindDisputeCreated, KindDisputeResolved, KindCarbonOffseted:
		return true
	}
	return false
}

// Envelope is one normalized ledger event with its ordering metadata.
//
// Envelopes are totally ordered by (BlockNumber, TxIndex, LogIndex) ascending.
// The projector trusts that ordering from its source and never re-sorts.
type Envelope struct {
	// Kind identifies the event and therefore the payload variant.
	Kind Kind
	// BlockNumber is the ledger block that contains the event.
	BlockNumber uint64
	// TxIndex is the transaction position within the block.
	TxIndex uint32
	// LogIndex is the log position within the transaction.
	LogIndex uint32
	// BlockTime is the ledger timestamp of the block, in unix seconds.
	BlockTime uint64
	// TxHash is the hash of the transaction that emitted the event.
	TxHash string
	// Payload holds the kind-specific event data. Exactly one variant per Kind.
	Payload Payload
}

// DedupKey returns the idempotency key for one event occurrence.
// A transaction hash plus log index is unique per emitted event.
func (e Envelope) DedupKey() string {
	return DedupKey(e.TxHash, e.LogIndex)
}

// DedupKey derives the idempotency key from ledger coordinates.
func DedupKey(txHash string, logIndex uint32) string {
	return strings.TrimSpace(txHash) + "-" + strconv.FormatUint(uint64(logIndex), 10)
}

// Before reports whether e precedes other in ledger order.
func (e Envelope) Before(other Envelope) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	if e.TxIndex != other.TxIndex {
		return e.TxIndex < other.TxIndex
	}
	return e.LogIndex < other.LogIndex
}

// Coordinates returns the total-order key of the envelope.
func (e Envelope) Coordinates() (uint64, uint32, uint32) {
	return e.BlockNumber, e.TxIndex, e.LogIndex
}

// Validate checks the envelope is well formed: a known kind, ledger
// coordinates present, and a payload matching the kind. Payload field
// validation beyond shape (amount bounds, referenced entities) is the
// projection layer's concern.
func (e Envelope) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("unknown event kind: %q", e.Kind)
	}
	if strings.TrimSpace(e.TxHash) == "" {
		return fmt.Errorf("transaction hash is required")
	}
	if e.Payload == nil {
		return fmt.Errorf("%s payload is required", e.Kind)
	}
	if got := e.Payload.EventKind(); got != e.Kind {
		return fmt.Errorf("payload kind %s does not match envelope kind %s", got, e.Kind)
	}
	return nil
}

// NormalizeAddress canonicalizes a ledger address for use as an entity id.
// Hex addresses are case-insensitive on the wire, so ids are lowercased to
// keep one User per address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
