// Package normalize turns the loosely-structured documents produced by
// the receipt extraction service into valid ledger.Purchase values. It
// is pure with respect to storage: it only constructs a Purchase or
// reports that none could be produced.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
)

// ErrNoPurchase is the definitive "no purchase produced" signal. A
// document missing a hard-required field, or with an uncoercible
// total, fails with an error wrapping this sentinel; callers treat it
// as an expected outcome, not a crash.
var ErrNoPurchase = errors.New("no purchase produced")

// fieldAliases maps the alternate key names the extraction service is
// known to emit onto the canonical document keys. Applied in one pass
// before validation; a canonical key already present always wins.
var fieldAliases = map[string]string{
	"store": "merchant_name",
	"date":  "transaction_date",
	"total": "total_amount",
}

// dateFormats are tried in order against the raw transaction date. The
// first that parses wins; if none do, the original string is kept.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"January 2, 2006",
	"2 January 2006",
}

const fallbackItemName = "Receipt total"

// Normalize converts a raw extraction document into a valid Purchase.
// merchant_name and total_amount are hard requirements; the
// transaction date is repaired to today's date when missing. The
// returned Purchase always owns at least one line item.
func Normalize(doc map[string]any) (*ledger.Purchase, error) {
	return normalizeAt(doc, time.Now())
}

func normalizeAt(doc map[string]any, now time.Time) (*ledger.Purchase, error) {
	if doc == nil {
		return nil, fmt.Errorf("normalize: nil document: %w", ErrNoPurchase)
	}

	doc = applyAliases(doc)

	merchant, ok := getString(doc, "merchant_name")
	if !ok {
		return nil, fmt.Errorf("normalize: missing merchant_name: %w", ErrNoPurchase)
	}

	total, ok := getFloat(doc, "total_amount")
	if !ok {
		return nil, fmt.Errorf("normalize: missing or non-numeric total_amount: %w", ErrNoPurchase)
	}
	if total < 0 {
		return nil, fmt.Errorf("normalize: negative total_amount %v: %w", total, ErrNoPurchase)
	}

	var notes []string
	txDate, ok := getString(doc, "transaction_date")
	if !ok {
		txDate = now.Format("2006-01-02")
		notes = append(notes, "Date could not be read from receipt; using today's date as fallback.")
	} else {
		txDate = normalizeDate(txDate)
	}

	items := extractItems(doc, total)

	currency, ok := getString(doc, "currency")
	if !ok {
		currency = ledger.DefaultCurrency
	}
	payment, _ := getString(doc, "payment_method")

	return &ledger.Purchase{
		ID:              ledger.NewPurchaseID(merchant, txDate, 0),
		MerchantName:    merchant,
		TransactionDate: txDate,
		TotalAmount:     total,
		Currency:        currency,
		PaymentMethod:   payment,
		Notes:           notes,
		Items:           items,
	}, nil
}

// applyAliases fills canonical keys from their aliases without
// mutating the caller's map.
func applyAliases(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for alias, canonical := range fieldAliases {
		if _, exists := out[canonical]; exists {
			continue
		}
		if v, ok := out[alias]; ok {
			out[canonical] = v
		}
	}
	return out
}

// normalizeDate reformats a raw date string to YYYY-MM-DD using the
// first matching input format. Unparseable dates pass through as-is;
// a wrong-looking date is better than a dropped purchase.
func normalizeDate(raw string) string {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

// extractItems reads the document's item list best-effort: entries
// missing a name or a coercible non-negative price are dropped without
// failing the purchase. When nothing survives, a single fallback item
// covering the receipt total guarantees every Purchase owns at least
// one item.
func extractItems(doc map[string]any, total float64) []ledger.LineItem {
	rawItems, _ := getList(doc, "items")

	items := make([]ledger.LineItem, 0, len(rawItems))
	for _, raw := range rawItems {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, ok := getString(entry, "name")
		if !ok {
			continue
		}
		price, ok := getFloat(entry, "price")
		if !ok || price < 0 {
			continue
		}
		qty, ok := getInt(entry, "quantity")
		if !ok || qty < 1 {
			qty = 1
		}
		category, _ := getString(entry, "category")

		items = append(items, ledger.LineItem{
			Name:     name,
			Price:    price,
			Quantity: qty,
			Category: ledger.CanonicalCategory(category),
		})
	}

	if len(items) == 0 {
		items = append(items, ledger.LineItem{
			Name:     fallbackItemName,
			Price:    total,
			Quantity: 1,
			Category: ledger.DefaultCategory,
		})
	}
	return items
}
