package event

import "math/big"

// Payload is the closed set of kind-specific event payloads. Dynamic event
// data becomes one of these variants at the system boundary so projection
// handlers never branch on untyped fields.
type Payload interface {
	// EventKind returns the kind the payload belongs to.
	EventKind() Kind
}

// ProductCreatedPayload captures the payload for product.created events.
type ProductCreatedPayload struct {
	// TokenID is the minted token identifier, used as the Product id.
	TokenID string
	// Name is the human-readable product name.
	Name string
	// Producer is the address that minted the product.
	Producer string
}

// EventKind implements Payload.
func (ProductCreatedPayload) EventKind() Kind { return KindProductCreated }

// SupplyChainUpdatedPayload captures the payload for supply_chain.updated events.
type SupplyChainUpdatedPayload struct {
	TokenID string
	// Stakeholder is the address that recorded the checkpoint.
	Stakeholder string
	// Location is the free-form checkpoint location.
	Location string
}

// EventKind implements Payload.
func (SupplyChainUpdatedPayload) EventKind() Kind { return KindSupplyChainUpdated }

// ProductCertifiedPayload captures the payload for product.certified events.
type ProductCertifiedPayload struct {
	TokenID string
	// Certifier is the address that issued the certification. Authorization
	// is enforced by the contract before the event is emitted.
	Certifier string
}

// EventKind implements Payload.
func (ProductCertifiedPayload) EventKind() Kind { return KindProductCertified }

// DisputeCreatedPayload captures the payload for dispute.created events.
type DisputeCreatedPayload struct {
	// DisputeID is the contract-issued dispute identifier.
	DisputeID string
	// ProductID references the disputed product.
	ProductID string
	// Initiator is the address that opened the dispute.
	Initiator string
}

// EventKind implements Payload.
func (DisputeCreatedPayload) EventKind() Kind { return KindDisputeCreated }

// DisputeResolvedPayload captures the payload for dispute.resolved events.
type DisputeResolvedPayload struct {
	DisputeID string
	// Resolution is the free-form resolution text.
	Resolution string
}

// EventKind implements Payload.
func (DisputeResolvedPayload) EventKind() Kind { return KindDisputeResolved }

// CarbonOffsetedPayload captures the payload for carbon.offseted events.
type CarbonOffsetedPayload struct {
	// User is the address receiving the offset credits.
	User string
	// Amount is the offset amount in the smallest credit unit.
	Amount *big.Int
}

// EventKind implements Payload.
func (CarbonOffsetedPayload) EventKind() Kind { return KindCarbonOffseted }

// maxAmount is the largest value the 256-bit ledger word can carry.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ValidAmount reports whether amount fits the ledger's unsigned 256-bit
// range. Amounts outside the range are malformed, never clamped.
func ValidAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0 && amount.Cmp(maxAmount) <= 0
}
