// Package store defines the persistence contract for the purchase
// ledger. Backends (embedded sqlite, in-memory) implement the same
// behavioral contract so callers never care which one is wired in.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
)

// ErrQueryNotAllowed is returned by ExecuteQuery for anything that is
// not a SELECT statement. The guard is syntactic only; it keeps agent
// tools from mutating the ledger through the ad-hoc query hatch, it is
// not a SQL sandbox.
var ErrQueryNotAllowed = errors.New("only SELECT queries are allowed")

// Store persists purchases and their line items.
//
// Write methods are atomic per purchase and propagate failures. Read
// methods degrade to an empty slice on unexpected errors (logged by
// the backend) so report and UI callers stay simple.
type Store interface {
	// AddPurchase inserts the purchase, or — when a purchase with the
	// same id already exists — replaces its scalar fields and its
	// entire item set. Returns the effective purchase id.
	AddPurchase(ctx context.Context, p *ledger.Purchase) (string, error)

	// DeletePurchase removes the purchase and all items it owns.
	// Deleting an id that does not exist is not an error.
	DeletePurchase(ctx context.Context, id string) error

	// GetAllPurchases returns every purchase with its items.
	GetAllPurchases(ctx context.Context) []ledger.Purchase

	// GetPurchasesByMerchant matches merchant_name case-insensitively
	// by substring.
	GetPurchasesByMerchant(ctx context.Context, merchant string) []ledger.Purchase

	// GetPurchasesByCategory returns purchases owning at least one
	// item whose category matches case-insensitively by substring,
	// each purchase at most once.
	GetPurchasesByCategory(ctx context.Context, category string) []ledger.Purchase

	// GetPurchasesByDateRange returns purchases with start <= date <=
	// end. YYYY-MM-DD is fixed-width so lexicographic comparison is
	// exact.
	GetPurchasesByDateRange(ctx context.Context, start, end string) []ledger.Purchase

	// ExecuteQuery runs an arbitrary read-only query and returns
	// column-name-keyed rows. Non-SELECT text fails with
	// ErrQueryNotAllowed.
	ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error)

	Close() error
}

// IsSelect reports whether the trimmed query text begins with SELECT,
// case-insensitively. Shared by every backend's ExecuteQuery guard.
func IsSelect(query string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(query)), "select")
}
