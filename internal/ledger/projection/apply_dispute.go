package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wandeoki/afritrace/internal/ledger/event"
	"github.com/wandeoki/afritrace/internal/ledger/storage"
	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

func (a Applier) applyDisputeCreated(ctx context.Context, env event.Envelope, payload event.DisputeCreatedPayload) error {
	disputeID := strings.TrimSpace(payload.DisputeID)
	if disputeID == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "dispute id is required")
	}
	productID := strings.TrimSpace(payload.ProductID)
	if productID == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "dispute product id is required")
	}

	if _, err := a.Products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return danglingProduct(productID, env)
		}
		return err
	}

	createdAt := blockTime(env.BlockTime)
	return a.Disputes.PutDispute(ctx, storage.DisputeRecord{
		ID:        disputeID,
		ProductID: productID,
		Initiator: event.NormalizeAddress(payload.Initiator),
		Resolved:  false,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
}

func (a Applier) applyDisputeResolved(ctx context.Context, env event.Envelope, payload event.DisputeResolvedPayload) error {
	disputeID := strings.TrimSpace(payload.DisputeID)
	if disputeID == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "dispute id is required")
	}

	dispute, err := a.Disputes.GetDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeDanglingReference,
				fmt.Sprintf("%s references unknown dispute %s", env.Kind, disputeID),
				map[string]string{
					"dispute_id": disputeID,
					"tx_hash":    env.TxHash,
					"event_kind": string(env.Kind),
				})
		}
		return err
	}
	if dispute.Resolved {
		// The first resolution wins. Redelivered or conflicting resolutions
		// leave the record untouched.
		return nil
	}

	dispute.Resolved = true
	dispute.Resolution = payload.Resolution
	dispute.UpdatedAt = blockTime(env.BlockTime)
	return a.Disputes.PutDispute(ctx, dispute)
}
