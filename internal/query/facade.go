// Package query is the single dispatch point through which agent
// tools, report generators and the HTTP API read the purchase ledger.
package query

import (
	"context"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

// Filter carries the optional filter dimensions a caller may supply.
// Only one dimension is honored per call; see Purchases.
type Filter struct {
	Merchant  string
	Category  string
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
}

// Facade selects the store filter operation matching the supplied
// filter arguments.
type Facade struct {
	store store.Store
}

// New creates a façade over the given store.
func New(s store.Store) *Facade {
	return &Facade{store: s}
}

// Purchases dispatches on the first populated filter dimension, in
// priority order: merchant, then category, then date range, else all.
// Combining dimensions is deliberately unsupported; callers needing an
// intersection filter client-side over the full ledger.
func (f *Facade) Purchases(ctx context.Context, filter Filter) []ledger.Purchase {
	switch {
	case filter.Merchant != "":
		return f.store.GetPurchasesByMerchant(ctx, filter.Merchant)
	case filter.Category != "":
		return f.store.GetPurchasesByCategory(ctx, filter.Category)
	case filter.StartDate != "" && filter.EndDate != "":
		return f.store.GetPurchasesByDateRange(ctx, filter.StartDate, filter.EndDate)
	default:
		return f.store.GetAllPurchases(ctx)
	}
}
