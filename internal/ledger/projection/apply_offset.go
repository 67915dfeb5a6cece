package projection

import (
	"context"
	"fmt"
	"math/big"

	"github.com/wandeoki/afritrace/internal/ledger/event"
	"github.com/wandeoki/afritrace/internal/ledger/storage"
	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

func (a Applier) applyCarbonOffseted(ctx context.Context, env event.Envelope, payload event.CarbonOffsetedPayload) error {
	user := event.NormalizeAddress(payload.User)
	if user == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "offset user address is required")
	}
	if !event.ValidAmount(payload.Amount) {
		return apperrors.WithMetadata(apperrors.CodeOffsetInvalidAmount,
			fmt.Sprintf("carbon offset amount %s is outside the accepted range", amountString(payload.Amount)),
			map[string]string{
				"user":    user,
				"tx_hash": env.TxHash,
			})
	}

	occurredAt := blockTime(env.BlockTime)
	if err := a.Offsets.PutOffset(ctx, storage.CarbonOffsetRecord{
		// Keyed by occurrence, so a redelivered event overwrites its own
		// record instead of minting a second one.
		ID:        env.DedupKey(),
		User:      user,
		Amount:    payload.Amount,
		Timestamp: occurredAt,
	}); err != nil {
		return err
	}

	record, err := a.Users.EnsureUser(ctx, user, occurredAt)
	if err != nil {
		return err
	}
	credits := record.CarbonCredits
	if credits == nil {
		credits = new(big.Int)
	}
	record.CarbonCredits = new(big.Int).Add(credits, payload.Amount)
	record.UpdatedAt = occurredAt
	return a.Users.PutUser(ctx, record)
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "<nil>"
	}
	return amount.String()
}
