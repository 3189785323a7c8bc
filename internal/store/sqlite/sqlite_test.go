package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "purchases.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePurchase() *ledger.Purchase {
	return &ledger.Purchase{
		ID:              "walmart-2024-05-01",
		MerchantName:    "Walmart",
		TransactionDate: "2024-05-01",
		TotalAmount:     11.63,
		Currency:        "USD",
		PaymentMethod:   "VISA",
		Notes:           []string{"imported from photo"},
		Items: []ledger.LineItem{
			{Name: "Milk", Price: 3.99, Quantity: 1, Category: "Grocery"},
			{Name: "Batteries", Price: 7.64, Quantity: 1, Category: "Electronics"},
		},
	}
}

func TestAddPurchase_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := samplePurchase()
	id, err := s.AddPurchase(ctx, p)
	if err != nil {
		t.Fatalf("AddPurchase failed: %v", err)
	}
	if id != p.ID {
		t.Errorf("AddPurchase returned id %q, want %q", id, p.ID)
	}

	all := s.GetAllPurchases(ctx)
	if len(all) != 1 {
		t.Fatalf("got %d purchases, want 1", len(all))
	}
	if !reflect.DeepEqual(all[0], *p) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", all[0], *p)
	}
}

func TestAddPurchase_UpsertReplacesItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := samplePurchase()
	if _, err := s.AddPurchase(ctx, p); err != nil {
		t.Fatalf("first AddPurchase failed: %v", err)
	}

	updated := samplePurchase()
	updated.TotalAmount = 5.00
	updated.Items = []ledger.LineItem{
		{Name: "Eggs", Price: 5.00, Quantity: 1, Category: "Grocery"},
	}
	if _, err := s.AddPurchase(ctx, updated); err != nil {
		t.Fatalf("second AddPurchase failed: %v", err)
	}

	all := s.GetAllPurchases(ctx)
	if len(all) != 1 {
		t.Fatalf("upsert duplicated the purchase: got %d rows", len(all))
	}
	if all[0].TotalAmount != 5.00 {
		t.Errorf("TotalAmount = %v, want replaced value 5.00", all[0].TotalAmount)
	}
	if len(all[0].Items) != 1 || all[0].Items[0].Name != "Eggs" {
		t.Errorf("items = %+v, want exactly the second item set", all[0].Items)
	}
}

func TestDeletePurchase(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := samplePurchase()
	if _, err := s.AddPurchase(ctx, p); err != nil {
		t.Fatalf("AddPurchase failed: %v", err)
	}

	if err := s.DeletePurchase(ctx, p.ID); err != nil {
		t.Fatalf("DeletePurchase failed: %v", err)
	}
	if got := s.GetAllPurchases(ctx); len(got) != 0 {
		t.Errorf("purchase still present after delete: %+v", got)
	}

	// Item rows must be gone too, not just the purchase row.
	rows, err := s.ExecuteQuery(ctx, "SELECT COUNT(*) AS n FROM items")
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if n, ok := rows[0]["n"].(int64); !ok || n != 0 {
		t.Errorf("items remaining after delete: %v", rows[0]["n"])
	}

	// Idempotent: deleting an absent id is not an error.
	if err := s.DeletePurchase(ctx, "never-existed"); err != nil {
		t.Errorf("deleting absent id returned error: %v", err)
	}
}

func TestGetPurchasesByMerchant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, p := range []*ledger.Purchase{
		{ID: "a", MerchantName: "Walmart Supercenter", TransactionDate: "2024-05-01", TotalAmount: 10, Currency: "USD",
			Items: []ledger.LineItem{{Name: "x", Price: 10, Quantity: 1, Category: "Other"}}},
		{ID: "b", MerchantName: "Target", TransactionDate: "2024-05-02", TotalAmount: 20, Currency: "USD",
			Items: []ledger.LineItem{{Name: "y", Price: 20, Quantity: 1, Category: "Other"}}},
	} {
		if _, err := s.AddPurchase(ctx, p); err != nil {
			t.Fatalf("AddPurchase failed: %v", err)
		}
	}

	got := s.GetPurchasesByMerchant(ctx, "walmart")
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("GetPurchasesByMerchant(walmart) = %+v, want purchase a", got)
	}
	if got := s.GetPurchasesByMerchant(ctx, "MART"); len(got) != 2 {
		t.Errorf("substring match should hit both Walmart and Target: got %d", len(got))
	}
}

func TestGetPurchasesByCategory_DistinctAndCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &ledger.Purchase{
		ID: "multi", MerchantName: "Market", TransactionDate: "2024-05-01", TotalAmount: 9, Currency: "USD",
		Items: []ledger.LineItem{
			{Name: "Milk", Price: 3, Quantity: 1, Category: "Grocery"},
			{Name: "Bread", Price: 3, Quantity: 1, Category: "Grocery"},
			{Name: "Soap", Price: 3, Quantity: 1, Category: "Household"},
		},
	}
	if _, err := s.AddPurchase(ctx, p); err != nil {
		t.Fatalf("AddPurchase failed: %v", err)
	}

	got := s.GetPurchasesByCategory(ctx, "grocery")
	if len(got) != 1 {
		t.Fatalf("purchase with two grocery items must be returned exactly once, got %d", len(got))
	}
	if len(got[0].Items) != 3 {
		t.Errorf("rehydrated purchase should carry all items, got %d", len(got[0].Items))
	}
	if got := s.GetPurchasesByCategory(ctx, "Clothing"); len(got) != 0 {
		t.Errorf("no clothing items stored, got %+v", got)
	}
}

func TestGetPurchasesByDateRange_InclusiveBounds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, d := range []string{"2024-04-30", "2024-05-01", "2024-05-15", "2024-05-31", "2024-06-01"} {
		p := &ledger.Purchase{
			ID: "p-" + d, MerchantName: "Shop", TransactionDate: d, TotalAmount: 1, Currency: "USD",
			Items: []ledger.LineItem{{Name: "x", Price: 1, Quantity: 1, Category: "Other"}},
		}
		if _, err := s.AddPurchase(ctx, p); err != nil {
			t.Fatalf("AddPurchase failed: %v", err)
		}
	}

	got := s.GetPurchasesByDateRange(ctx, "2024-05-01", "2024-05-31")
	if len(got) != 3 {
		t.Fatalf("got %d purchases in May, want 3 (bounds inclusive)", len(got))
	}
	for _, p := range got {
		if p.TransactionDate < "2024-05-01" || p.TransactionDate > "2024-05-31" {
			t.Errorf("purchase %s outside requested range", p.ID)
		}
	}
}

func TestExecuteQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddPurchase(ctx, samplePurchase()); err != nil {
		t.Fatalf("AddPurchase failed: %v", err)
	}

	t.Run("rejects non-select", func(t *testing.T) {
		_, err := s.ExecuteQuery(ctx, "DROP TABLE purchases")
		if !errors.Is(err, store.ErrQueryNotAllowed) {
			t.Fatalf("err = %v, want ErrQueryNotAllowed", err)
		}
		// Schema must be untouched.
		if got := s.GetAllPurchases(ctx); len(got) != 1 {
			t.Errorf("table damaged by rejected query: %+v", got)
		}
	})

	t.Run("rejects update", func(t *testing.T) {
		_, err := s.ExecuteQuery(ctx, "  UPDATE purchases SET total_amount = 0")
		if !errors.Is(err, store.ErrQueryNotAllowed) {
			t.Errorf("err = %v, want ErrQueryNotAllowed", err)
		}
	})

	t.Run("select returns keyed rows", func(t *testing.T) {
		rows, err := s.ExecuteQuery(ctx, "SELECT id, merchant_name FROM purchases")
		if err != nil {
			t.Fatalf("ExecuteQuery failed: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("got %d rows, want 1", len(rows))
		}
		if rows[0]["merchant_name"] != "Walmart" {
			t.Errorf("merchant_name = %v, want Walmart", rows[0]["merchant_name"])
		}
	})

	t.Run("case-insensitive select allowed", func(t *testing.T) {
		if _, err := s.ExecuteQuery(ctx, "sElEcT COUNT(*) FROM items"); err != nil {
			t.Errorf("lowercase select rejected: %v", err)
		}
	})
}

func TestNotesNullWhenEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := samplePurchase()
	p.Notes = nil
	if _, err := s.AddPurchase(ctx, p); err != nil {
		t.Fatalf("AddPurchase failed: %v", err)
	}

	rows, err := s.ExecuteQuery(ctx, "SELECT notes FROM purchases")
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if rows[0]["notes"] != nil {
		t.Errorf("notes = %v, want NULL for empty note list", rows[0]["notes"])
	}

	all := s.GetAllPurchases(ctx)
	if len(all[0].Notes) != 0 {
		t.Errorf("Notes = %v, want empty", all[0].Notes)
	}
}
