package query

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
	"github.com/wandeoki/afritrace/internal/ledger/storage/memory"
)

func newTestQueries(t *testing.T) (*Queries, *memory.Store) {
	t.Helper()
	db := memory.New()
	q, err := New(db.Stores())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return q, db
}

func TestNew_RequiresAllStores(t *testing.T) {
	if _, err := New(storage.Bundle{}); err == nil {
		t.Fatal("expected error for empty bundle")
	}
}

func TestProduct(t *testing.T) {
	ctx := context.Background()
	q, db := newTestQueries(t)

	if err := db.PutProduct(ctx, storage.ProductRecord{ID: "1", Name: "Coffee Lot 1"}); err != nil {
		t.Fatalf("PutProduct returned error: %v", err)
	}

	product, err := q.Product(ctx, "1")
	if err != nil {
		t.Fatalf("Product returned error: %v", err)
	}
	if product.Name != "Coffee Lot 1" {
		t.Fatalf("name = %q, want %q", product.Name, "Coffee Lot 1")
	}

	if _, err := q.Product(ctx, "404"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if _, err := q.Product(ctx, " "); err == nil {
		t.Fatal("expected error for blank id")
	}
}

func TestRecentProducts(t *testing.T) {
	ctx := context.Background()
	q, db := newTestQueries(t)

	for i, id := range []string{"1", "2", "3"} {
		err := db.PutProduct(ctx, storage.ProductRecord{ID: id, CreatedAt: time.Unix(int64(1000+i), 0)})
		if err != nil {
			t.Fatalf("PutProduct returned error: %v", err)
		}
	}

	page, err := q.RecentProducts(ctx, 2, "")
	if err != nil {
		t.Fatalf("RecentProducts returned error: %v", err)
	}
	if len(page.Products) != 2 || page.Products[0].ID != "3" {
		t.Fatalf("page = %+v, want newest first", page.Products)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected next page token")
	}
}

func TestStepsByProduct(t *testing.T) {
	ctx := context.Background()
	q, db := newTestQueries(t)

	if err := db.PutStep(ctx, storage.SupplyChainStepRecord{ID: "1-1000", ProductID: "1", Timestamp: time.Unix(1000, 0)}); err != nil {
		t.Fatalf("PutStep returned error: %v", err)
	}

	steps, err := q.StepsByProduct(ctx, "1")
	if err != nil {
		t.Fatalf("StepsByProduct returned error: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(steps))
	}

	// Unknown products have an empty history, not an error.
	steps, err = q.StepsByProduct(ctx, "404")
	if err != nil {
		t.Fatalf("StepsByProduct returned error: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("steps = %d, want 0", len(steps))
	}
}

func TestDispute(t *testing.T) {
	ctx := context.Background()
	q, db := newTestQueries(t)

	if err := db.PutDispute(ctx, storage.DisputeRecord{ID: "7", ProductID: "1"}); err != nil {
		t.Fatalf("PutDispute returned error: %v", err)
	}

	dispute, err := q.Dispute(ctx, "7")
	if err != nil {
		t.Fatalf("Dispute returned error: %v", err)
	}
	if dispute.ProductID != "1" {
		t.Fatalf("product id = %q, want %q", dispute.ProductID, "1")
	}
}

func TestUser_NormalizesAddress(t *testing.T) {
	ctx := context.Background()
	q, db := newTestQueries(t)

	if err := db.PutUser(ctx, storage.UserRecord{ID: "0xabc", CarbonCredits: big.NewInt(800)}); err != nil {
		t.Fatalf("PutUser returned error: %v", err)
	}

	user, err := q.User(ctx, " 0xAbC ")
	if err != nil {
		t.Fatalf("User returned error: %v", err)
	}
	if user.CarbonCredits.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("credits = %s, want 800", user.CarbonCredits)
	}
}

func TestOffsetsByUser_NormalizesAddress(t *testing.T) {
	ctx := context.Background()
	q, db := newTestQueries(t)

	if err := db.PutOffset(ctx, storage.CarbonOffsetRecord{ID: "0xt1-0", User: "0xabc", Amount: big.NewInt(500)}); err != nil {
		t.Fatalf("PutOffset returned error: %v", err)
	}

	offsets, err := q.OffsetsByUser(ctx, "0xABC")
	if err != nil {
		t.Fatalf("OffsetsByUser returned error: %v", err)
	}
	if len(offsets) != 1 {
		t.Fatalf("offsets = %d, want 1", len(offsets))
	}
}
