package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

func mkPurchase(id, merchant, date string, categories ...string) *ledger.Purchase {
	items := make([]ledger.LineItem, 0, len(categories))
	for _, c := range categories {
		items = append(items, ledger.LineItem{Name: "item", Price: 1, Quantity: 1, Category: c})
	}
	return &ledger.Purchase{
		ID: id, MerchantName: merchant, TransactionDate: date,
		TotalAmount: float64(len(items)), Currency: "USD", Items: items,
	}
}

func TestUpsertAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AddPurchase(ctx, mkPurchase("a", "Walmart", "2024-05-01", "Grocery")); err != nil {
		t.Fatalf("AddPurchase failed: %v", err)
	}
	if _, err := s.AddPurchase(ctx, mkPurchase("b", "Target", "2024-05-02", "Household")); err != nil {
		t.Fatalf("AddPurchase failed: %v", err)
	}

	// Re-adding id "a" replaces its content but keeps its position.
	replacement := mkPurchase("a", "Walmart", "2024-05-01", "Electronics", "Electronics")
	if _, err := s.AddPurchase(ctx, replacement); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	all := s.GetAllPurchases(ctx)
	if len(all) != 2 {
		t.Fatalf("got %d purchases, want 2", len(all))
	}
	if all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", all[0].ID, all[1].ID)
	}
	if len(all[0].Items) != 2 {
		t.Errorf("upsert must replace the whole item set, got %+v", all[0].Items)
	}
}

func TestAddPurchase_RequiresID(t *testing.T) {
	s := New()
	if _, err := s.AddPurchase(context.Background(), &ledger.Purchase{MerchantName: "x"}); err == nil {
		t.Error("expected error for purchase without id")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AddPurchase(ctx, mkPurchase("a", "Walmart", "2024-05-01", "Grocery"))
	if err := s.DeletePurchase(ctx, "a"); err != nil {
		t.Fatalf("DeletePurchase failed: %v", err)
	}
	if err := s.DeletePurchase(ctx, "a"); err != nil {
		t.Errorf("second delete must be a no-op, got %v", err)
	}
	if got := s.GetAllPurchases(ctx); len(got) != 0 {
		t.Errorf("purchase still present: %+v", got)
	}
}

func TestFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AddPurchase(ctx, mkPurchase("a", "Walmart Supercenter", "2024-05-01", "Grocery", "Grocery"))
	s.AddPurchase(ctx, mkPurchase("b", "Corner Cafe", "2024-05-10", "Restaurant"))
	s.AddPurchase(ctx, mkPurchase("c", "Target", "2024-06-01", "Household"))

	if got := s.GetPurchasesByMerchant(ctx, "walmart"); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("merchant filter = %+v, want purchase a", got)
	}
	if got := s.GetPurchasesByCategory(ctx, "GROCERY"); len(got) != 1 {
		t.Errorf("category filter must return each purchase once, got %d", len(got))
	}
	if got := s.GetPurchasesByDateRange(ctx, "2024-05-01", "2024-05-31"); len(got) != 2 {
		t.Errorf("date range = %d purchases, want 2", len(got))
	}
}

func TestExecuteQueryGuard(t *testing.T) {
	s := New()

	_, err := s.ExecuteQuery(context.Background(), "DELETE FROM purchases")
	if !errors.Is(err, store.ErrQueryNotAllowed) {
		t.Errorf("err = %v, want ErrQueryNotAllowed", err)
	}

	// SELECT passes the guard but is unsupported on this backend.
	_, err = s.ExecuteQuery(context.Background(), "SELECT * FROM purchases")
	if err == nil || errors.Is(err, store.ErrQueryNotAllowed) {
		t.Errorf("err = %v, want unsupported error distinct from the guard", err)
	}
}

func TestCallerCannotMutateStoredState(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := mkPurchase("a", "Walmart", "2024-05-01", "Grocery")
	s.AddPurchase(ctx, p)
	p.Items[0].Price = 999

	got := s.GetAllPurchases(ctx)
	if got[0].Items[0].Price != 1 {
		t.Error("store shares memory with caller-held purchase")
	}

	got[0].MerchantName = "Mutated"
	if s.GetAllPurchases(ctx)[0].MerchantName != "Walmart" {
		t.Error("store shares memory with returned slice")
	}
}
