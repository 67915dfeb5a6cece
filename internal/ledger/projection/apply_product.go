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

func (a Applier) applyProductCreated(ctx context.Context, env event.Envelope, payload event.ProductCreatedPayload) error {
	productID := strings.TrimSpace(payload.TokenID)
	if productID == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "product token id is required")
	}
	producer := event.NormalizeAddress(payload.Producer)
	if producer == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "product producer address is required")
	}

	createdAt := blockTime(env.BlockTime)
	if err := a.Products.PutProduct(ctx, storage.ProductRecord{
		ID:          productID,
		Name:        payload.Name,
		Producer:    producer,
		IsCertified: false,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}); err != nil {
		return err
	}

	// Producers become users lazily; an existing balance is left untouched.
	_, err := a.Users.EnsureUser(ctx, producer, createdAt)
	return err
}

func (a Applier) applySupplyChainUpdated(ctx context.Context, env event.Envelope, payload event.SupplyChainUpdatedPayload) error {
	productID := strings.TrimSpace(payload.TokenID)
	if productID == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "product token id is required")
	}

	if _, err := a.Products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return danglingProduct(productID, env)
		}
		return err
	}

	timestamp := blockTime(env.BlockTime)
	return a.Steps.PutStep(ctx, storage.SupplyChainStepRecord{
		// Block time is unique per product checkpoint, so the id is stable
		// across replays.
		ID:          fmt.Sprintf("%s-%d", productID, env.BlockTime),
		ProductID:   productID,
		Stakeholder: event.NormalizeAddress(payload.Stakeholder),
		Location:    payload.Location,
		Timestamp:   timestamp,
	})
}

func (a Applier) applyProductCertified(ctx context.Context, env event.Envelope, payload event.ProductCertifiedPayload) error {
	productID := strings.TrimSpace(payload.TokenID)
	if productID == "" {
		return apperrors.New(apperrors.CodeEventMalformed, "product token id is required")
	}

	product, err := a.Products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return danglingProduct(productID, env)
		}
		return err
	}
	if product.IsCertified {
		// Certification is one-directional; a second certify event is a no-op.
		return nil
	}

	product.IsCertified = true
	product.UpdatedAt = blockTime(env.BlockTime)
	return a.Products.PutProduct(ctx, product)
}

// danglingProduct reports a referential-integrity violation for a missing product.
func danglingProduct(productID string, env event.Envelope) error {
	return apperrors.WithMetadata(apperrors.CodeDanglingReference,
		fmt.Sprintf("%s references unknown product %s", env.Kind, productID),
		map[string]string{
			"product_id": productID,
			"tx_hash":    env.TxHash,
			"event_kind": string(env.Kind),
		})
}
