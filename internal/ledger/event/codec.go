package event

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// wireEnvelope is the JSON shape of one exported ledger event.
type wireEnvelope struct {
	Kind        Kind            `json:"kind"`
	BlockNumber uint64          `json:"blockNumber"`
	TxIndex     uint32          `json:"txIndex"`
	LogIndex    uint32          `json:"logIndex"`
	BlockTime   uint64          `json:"blockTime"`
	TxHash      string          `json:"txHash"`
	Payload     json.RawMessage `json:"payload"`
}

type wireProductCreated struct {
	TokenID  string `json:"tokenId"`
	Name     string `json:"name"`
	Producer string `json:"producer"`
}

type wireSupplyChainUpdated struct {
	TokenID     string `json:"tokenId"`
	Stakeholder string `json:"stakeholder"`
	Location    string `json:"location"`
}

type wireProductCertified struct {
	TokenID   string `json:"tokenId"`
	Certifier string `json:"certifier"`
}

type wireDisputeCreated struct {
	DisputeID string `json:"disputeId"`
	ProductID string `json:"productId"`
	Initiator string `json:"initiator"`
}

type wireDisputeResolved struct {
	DisputeID  string `json:"disputeId"`
	Resolution string `json:"resolution"`
}

type wireCarbonOffseted struct {
	User string `json:"user"`
	// Amount is a base-10 integer string so arbitrary-precision values
	// survive the trip through JSON.
	Amount string `json:"amount"`
}

// DecodeEnvelope parses one JSON-encoded ledger event into a validated
// envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, fmt.Errorf("decode event envelope: %w", err)
	}

	env := Envelope{
		Kind:        wire.Kind,
		BlockNumber: wire.BlockNumber,
		TxIndex:     wire.TxIndex,
		LogIndex:    wire.LogIndex,
		BlockTime:   wire.BlockTime,
		TxHash:      wire.TxHash,
	}

	payload, err := decodePayload(wire.Kind, wire.Payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = payload

	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s payload is required", kind)
	}

	switch kind {
	case KindProductCreated:
		var w wireProductCreated
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return ProductCreatedPayload{TokenID: w.TokenID, Name: w.Name, Producer: w.Producer}, nil
	case KindSupplyChainUpdated:
		var w wireSupplyChainUpdated
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return SupplyChainUpdatedPayload{TokenID: w.TokenID, Stakeholder: w.Stakeholder, Location: w.Location}, nil
	case KindProductCertified:
		var w wireProductCertified
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return ProductCertifiedPayload{TokenID: w.TokenID, Certifier: w.Certifier}, nil
	case KindDisputeCreated:
		var w wireDisputeCreated
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return DisputeCreatedPayload{DisputeID: w.DisputeID, ProductID: w.ProductID, Initiator: w.Initiator}, nil
	case KindDisputeResolved:
		var w wireDisputeResolved
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return DisputeResolvedPayload{DisputeID: w.DisputeID, Resolution: w.Resolution}, nil
	case KindCarbonOffseted:
		var w wireCarbonOffseted
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		amount, ok := new(big.Int).SetString(w.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("decode %s payload: amount %q is not a base-10 integer", kind, w.Amount)
		}
		return CarbonOffsetedPayload{User: w.User, Amount: amount}, nil
	}
	return nil, fmt.Errorf("unknown event kind: %q", kind)
}
