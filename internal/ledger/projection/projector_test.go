package projection

import (
	"context"
	"errors"
	"io"
	"log"
	"math/big"
	"testing"
	"time"

	"github.com/wandeoki/afritrace/internal/ledger/event"
	"github.com/wandeoki/afritrace/internal/ledger/storage"
	"github.com/wandeoki/afritrace/internal/ledger/storage/memory"
	apperrors "github.com/wandeoki/afritrace/internal/platform/errors"
)

func newTestProjector(t *testing.T, opts ...Option) (*Projector, *memory.Store) {
	t.Helper()
	db := memory.New()
	opts = append(opts, WithLogger(log.New(io.Discard, "", 0)))
	p, err := New(db, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return p, db
}

func productCreated(token, producer string, block uint64, logIndex uint32, blockTime uint64) event.Envelope {
	return event.Envelope{
		Kind:        event.KindProductCreated,
		BlockNumber: block,
		LogIndex:    logIndex,
		BlockTime:   blockTime,
		TxHash:      "0xcreate-" + token,
		Payload:     event.ProductCreatedPayload{TokenID: token, Name: "Coffee Lot " + token, Producer: producer},
	}
}

func supplyChainUpdated(token, stakeholder string, block uint64, blockTime uint64) event.Envelope {
	return event.Envelope{
		Kind:        event.KindSupplyChainUpdated,
		BlockNumber: block,
		BlockTime:   blockTime,
		TxHash:      "0xstep-" + token,
		Payload:     event.SupplyChainUpdatedPayload{TokenID: token, Stakeholder: stakeholder, Location: "Mombasa"},
	}
}

func productCertified(token string, block uint64, blockTime uint64) event.Envelope {
	return event.Envelope{
		Kind:        event.KindProductCertified,
		BlockNumber: block,
		BlockTime:   blockTime,
		TxHash:      "0xcert-" + token,
		Payload:     event.ProductCertifiedPayload{TokenID: token, Certifier: "0xCert"},
	}
}

func disputeCreated(disputeID, productID string, block uint64) event.Envelope {
	return event.Envelope{
		Kind:        event.KindDisputeCreated,
		BlockNumber: block,
		BlockTime:   2000,
		TxHash:      "0xdispute-" + disputeID,
		Payload:     event.DisputeCreatedPayload{DisputeID: disputeID, ProductID: productID, Initiator: "0xBuyer"},
	}
}

func disputeResolved(disputeID, resolution string, block uint64, logIndex uint32) event.Envelope {
	return event.Envelope{
		Kind:        event.KindDisputeResolved,
		BlockNumber: block,
		LogIndex:    logIndex,
		BlockTime:   3000,
		TxHash:      "0xresolve-" + disputeID,
		Payload:     event.DisputeResolvedPayload{DisputeID: disputeID, Resolution: resolution},
	}
}

func carbonOffseted(user string, amount int64, block uint64, logIndex uint32) event.Envelope {
	return event.Envelope{
		Kind:        event.KindCarbonOffseted,
		BlockNumber: block,
		LogIndex:    logIndex,
		BlockTime:   4000,
		TxHash:      "0xoffset",
		Payload:     event.CarbonOffsetedPayload{User: user, Amount: big.NewInt(amount)},
	}
}

func mustApply(t *testing.T, p *Projector, env event.Envelope) Result {
	t.Helper()
	res, err := p.Apply(context.Background(), env)
	if err != nil {
		t.Fatalf("Apply(%s) returned error: %v", env.Kind, err)
	}
	return res
}

func TestApply_ProductCreated(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	res := mustApply(t, p, productCreated("1", "0xAbC", 10, 0, 1000))
	if !res.Applied {
		t.Fatalf("result = %+v, want applied", res)
	}

	product, err := db.GetProduct(ctx, "1")
	if err != nil {
		t.Fatalf("product not stored: %v", err)
	}
	if product.IsCertified {
		t.Fatal("new product must not be certified")
	}
	if product.Producer != "0xabc" {
		t.Fatalf("producer = %q, want lowercased %q", product.Producer, "0xabc")
	}
	if got := product.CreatedAt; !got.Equal(time.Unix(1000, 0)) {
		t.Fatalf("created at = %v, want block time", got)
	}

	user, err := db.GetUser(ctx, "0xabc")
	if err != nil {
		t.Fatalf("producer user not stored: %v", err)
	}
	if user.CarbonCredits.Sign() != 0 {
		t.Fatalf("new user credits = %s, want 0", user.CarbonCredits)
	}
}

func TestApply_Redelivery_ReportsDuplicate(t *testing.T) {
	p, _ := newTestProjector(t)
	env := productCreated("1", "0xabc", 10, 0, 1000)

	mustApply(t, p, env)
	for i := 0; i < 3; i++ {
		res := mustApply(t, p, env)
		if !res.Duplicate {
			t.Fatalf("redelivery %d result = %+v, want duplicate", i, res)
		}
	}

	seen, err := p.IsSeen(context.Background(), env.TxHash, env.LogIndex)
	if err != nil {
		t.Fatalf("IsSeen returned error: %v", err)
	}
	if !seen {
		t.Fatal("applied event must be seen")
	}
}

func TestApply_SupplyChainUpdated_CreatesStep(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	mustApply(t, p, productCreated("1", "0xabc", 10, 0, 900))
	mustApply(t, p, supplyChainUpdated("1", "0xShip", 11, 1000))

	step, err := db.GetStep(ctx, "1-1000")
	if err != nil {
		t.Fatalf("step not stored under product-blocktime id: %v", err)
	}
	if step.ProductID != "1" {
		t.Fatalf("step product = %q, want %q", step.ProductID, "1")
	}
	if step.Stakeholder != "0xship" {
		t.Fatalf("stakeholder = %q, want lowercased", step.Stakeholder)
	}
}

func TestApply_SupplyChainUpdated_UnknownProductIsSkipped(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	env := supplyChainUpdated("404", "0xship", 11, 1000)
	res := mustApply(t, p, env)
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}

	if _, err := db.GetStep(ctx, "404-1000"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("step lookup error = %v, want not found", err)
	}
	// Skipped events stay unseen so a redelivery can apply them after the
	// missing product arrives.
	seen, err := p.IsSeen(ctx, env.TxHash, env.LogIndex)
	if err != nil {
		t.Fatalf("IsSeen returned error: %v", err)
	}
	if seen {
		t.Fatal("skipped event must not be marked seen")
	}

	mustApply(t, p, productCreated("404", "0xabc", 12, 0, 1100))
	res = mustApply(t, p, env)
	if !res.Applied {
		t.Fatalf("redelivered result = %+v, want applied", res)
	}
	if _, err := db.GetStep(ctx, "404-1000"); err != nil {
		t.Fatalf("step not stored after redelivery: %v", err)
	}
}

func TestApply_SupplyChainUpdated_UnknownProductStrictFails(t *testing.T) {
	p, _ := newTestProjector(t, WithStrict())

	_, err := p.Apply(context.Background(), supplyChainUpdated("404", "0xship", 11, 1000))
	if err == nil {
		t.Fatal("expected error for dangling reference in strict mode")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeDanglingReference {
		t.Fatalf("code = %s, want %s", code, apperrors.CodeDanglingReference)
	}
}

func TestApply_ProductCertified_SetsFlagOnce(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	mustApply(t, p, productCreated("1", "0xabc", 10, 0, 900))
	mustApply(t, p, productCertified("1", 11, 1000))

	product, err := db.GetProduct(ctx, "1")
	if err != nil {
		t.Fatalf("product not stored: %v", err)
	}
	if !product.IsCertified {
		t.Fatal("product must be certified")
	}

	// A second certification from a different transaction is a no-op.
	again := productCertified("1", 12, 1100)
	again.TxHash = "0xcert-again"
	mustApply(t, p, again)
	product, err = db.GetProduct(ctx, "1")
	if err != nil {
		t.Fatalf("product not stored: %v", err)
	}
	if !product.IsCertified {
		t.Fatal("certification must be monotonic")
	}
}

func TestApply_ProductCertified_UnknownProductIsSkipped(t *testing.T) {
	p, _ := newTestProjector(t)

	res := mustApply(t, p, productCertified("404", 11, 1000))
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}
}

func TestApply_DisputeLifecycle(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	mustApply(t, p, productCreated("1", "0xabc", 10, 0, 900))
	mustApply(t, p, disputeCreated("7", "1", 11))

	dispute, err := db.GetDispute(ctx, "7")
	if err != nil {
		t.Fatalf("dispute not stored: %v", err)
	}
	if dispute.Resolved {
		t.Fatal("new dispute must be unresolved")
	}

	mustApply(t, p, disputeResolved("7", "refund issued", 12, 0))
	dispute, err = db.GetDispute(ctx, "7")
	if err != nil {
		t.Fatalf("dispute not stored: %v", err)
	}
	if !dispute.Resolved || dispute.Resolution != "refund issued" {
		t.Fatalf("dispute = %+v, want resolved with resolution", dispute)
	}

	// The first resolution wins; a conflicting one leaves the record alone.
	mustApply(t, p, disputeResolved("7", "claim denied", 13, 1))
	dispute, err = db.GetDispute(ctx, "7")
	if err != nil {
		t.Fatalf("dispute not stored: %v", err)
	}
	if dispute.Resolution != "refund issued" {
		t.Fatalf("resolution = %q, want first resolution kept", dispute.Resolution)
	}
}

func TestApply_DisputeResolved_UnknownDisputeIsSkipped(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	res := mustApply(t, p, disputeResolved("999", "refund issued", 12, 0))
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if _, err := db.GetDispute(ctx, "999"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("dispute lookup error = %v, want not found", err)
	}
}

func TestApply_CarbonOffseted_AccumulatesCredits(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	first := carbonOffseted("0xA", 500, 10, 0)
	second := carbonOffseted("0xA", 300, 10, 1)
	mustApply(t, p, first)
	mustApply(t, p, second)

	user, err := db.GetUser(ctx, "0xa")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.CarbonCredits.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("credits = %s, want 800", user.CarbonCredits)
	}

	// Redelivering an applied offset must not double-credit.
	res := mustApply(t, p, first)
	if !res.Duplicate {
		t.Fatalf("redelivery result = %+v, want duplicate", res)
	}
	user, err = db.GetUser(ctx, "0xa")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.CarbonCredits.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("credits after redelivery = %s, want 800", user.CarbonCredits)
	}

	offsets, err := db.ListOffsetsByUser(ctx, "0xa")
	if err != nil {
		t.Fatalf("ListOffsetsByUser returned error: %v", err)
	}
	if len(offsets) != 2 {
		t.Fatalf("offset log entries = %d, want 2", len(offsets))
	}
}

func TestApply_CarbonOffseted_InvalidAmount(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t)

	env := carbonOffseted("0xa", 0, 10, 0)
	env.Payload = event.CarbonOffsetedPayload{User: "0xa", Amount: big.NewInt(-5)}

	res := mustApply(t, p, env)
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if _, err := db.GetUser(ctx, "0xa"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("user lookup error = %v, want not found", err)
	}

	strict, _ := newTestProjector(t, WithStrict())
	if _, err := strict.Apply(ctx, env); apperrors.CodeOf(err) != apperrors.CodeOffsetInvalidAmount {
		t.Fatalf("strict error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeOffsetInvalidAmount)
	}
}

func TestApply_MalformedEnvelope(t *testing.T) {
	p, _ := newTestProjector(t)

	res := mustApply(t, p, event.Envelope{Kind: "product.deleted", TxHash: "0x1"})
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}

	strict, _ := newTestProjector(t, WithStrict())
	_, err := strict.Apply(context.Background(), event.Envelope{Kind: "product.deleted", TxHash: "0x1"})
	if apperrors.CodeOf(err) != apperrors.CodeEventMalformed {
		t.Fatalf("strict error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeEventMalformed)
	}
}

func TestApply_FailureLeavesNoPartialWrites(t *testing.T) {
	ctx := context.Background()
	p, db := newTestProjector(t, WithStrict())

	env := carbonOffseted("0xa", 0, 10, 0)
	env.Payload = event.CarbonOffsetedPayload{User: "0xa", Amount: nil}

	if _, err := p.Apply(ctx, env); err == nil {
		t.Fatal("expected error for nil amount")
	}
	if _, err := db.GetOffset(ctx, env.DedupKey()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("offset lookup error = %v, want not found", err)
	}
}

func TestHandledKinds_CoversAllEvents(t *testing.T) {
	kinds := HandledKinds()
	if len(kinds) != 6 {
		t.Fatalf("handled kinds = %d, want 6", len(kinds))
	}
	for _, k := range kinds {
		if !k.IsValid() {
			t.Fatalf("handled kind %q is not a valid event kind", k)
		}
	}
}
