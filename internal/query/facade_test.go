package query

import (
	"context"
	"testing"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
)

// recordingStore records which store operation the façade dispatched
// to.
type recordingStore struct {
	called string
}

func (r *recordingStore) AddPurchase(ctx context.Context, p *ledger.Purchase) (string, error) {
	return "", nil
}
func (r *recordingStore) DeletePurchase(ctx context.Context, id string) error { return nil }
func (r *recordingStore) Close() error                                        { return nil }
func (r *recordingStore) ExecuteQuery(ctx context.Context, q string) ([]map[string]any, error) {
	return nil, nil
}

func (r *recordingStore) GetAllPurchases(ctx context.Context) []ledger.Purchase {
	r.called = "all"
	return nil
}
func (r *recordingStore) GetPurchasesByMerchant(ctx context.Context, m string) []ledger.Purchase {
	r.called = "merchant"
	return nil
}
func (r *recordingStore) GetPurchasesByCategory(ctx context.Context, c string) []ledger.Purchase {
	r.called = "category"
	return nil
}
func (r *recordingStore) GetPurchasesByDateRange(ctx context.Context, s, e string) []ledger.Purchase {
	r.called = "date_range"
	return nil
}

func TestPurchases_DispatchPriority(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			name:   "no filters",
			filter: Filter{},
			want:   "all",
		},
		{
			name:   "merchant only",
			filter: Filter{Merchant: "Walmart"},
			want:   "merchant",
		},
		{
			name:   "category only",
			filter: Filter{Category: "Grocery"},
			want:   "category",
		},
		{
			name:   "date range only",
			filter: Filter{StartDate: "2024-05-01", EndDate: "2024-05-31"},
			want:   "date_range",
		},
		{
			name:   "merchant wins over everything",
			filter: Filter{Merchant: "Walmart", Category: "Grocery", StartDate: "2024-05-01", EndDate: "2024-05-31"},
			want:   "merchant",
		},
		{
			name:   "category wins over date range",
			filter: Filter{Category: "Grocery", StartDate: "2024-05-01", EndDate: "2024-05-31"},
			want:   "category",
		},
		{
			name:   "incomplete date range falls through to all",
			filter: Filter{StartDate: "2024-05-01"},
			want:   "all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingStore{}
			New(rec).Purchases(context.Background(), tt.filter)
			if rec.called != tt.want {
				t.Errorf("dispatched to %q, want %q", rec.called, tt.want)
			}
		})
	}
}
