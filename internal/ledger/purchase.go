// Package ledger defines the purchase records produced by receipt
// extraction and persisted by the store. It is pure data plus
// conversion; validation and repair live in the normalize package.
package ledger

import (
	"fmt"
	"strings"
)

// Categories is the closed set of line item categories. Anything the
// extraction service invents is folded onto one of these.
var Categories = []string{
	"Grocery",
	"Restaurant",
	"Electronics",
	"Clothing",
	"Healthcare",
	"Office",
	"Transportation",
	"Entertainment",
	"Household",
	"Other",
}

// DefaultCategory is used when an item carries no usable category.
const DefaultCategory = "Other"

// DefaultCurrency is assumed when a receipt does not state one.
const DefaultCurrency = "USD"

// LineItem is one purchased product or service entry within a Purchase.
// Price is the unit price, not the extended amount.
type LineItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category"`
}

// ToMap converts the item to its canonical JSON-serializable form.
func (li LineItem) ToMap() map[string]any {
	return map[string]any{
		"name":     li.Name,
		"price":    li.Price,
		"quantity": li.Quantity,
		"category": li.Category,
	}
}

// Purchase is one receipt with its owned line items. Items never exist
// outside a Purchase; deleting the purchase deletes them.
type Purchase struct {
	ID              string     `json:"id"`
	MerchantName    string     `json:"merchant_name"`
	TransactionDate string     `json:"transaction_date"` // YYYY-MM-DD
	TotalAmount     float64    `json:"total_amount"`
	Currency        string     `json:"currency"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	Notes           []string   `json:"notes,omitempty"`
	Items           []LineItem `json:"items"`
}

// ToMap converts the purchase to its canonical JSON-serializable form,
// recursively serializing items.
func (p *Purchase) ToMap() map[string]any {
	items := make([]map[string]any, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, it.ToMap())
	}

	m := map[string]any{
		"id":               p.ID,
		"merchant_name":    p.MerchantName,
		"transaction_date": p.TransactionDate,
		"total_amount":     p.TotalAmount,
		"currency":         p.Currency,
		"items":            items,
	}
	if p.PaymentMethod != "" {
		m["payment_method"] = p.PaymentMethod
	}
	if len(p.Notes) > 0 {
		m["notes"] = p.Notes
	}
	return m
}

// NewPurchaseID derives a stable purchase id from the merchant name and
// transaction date, so re-importing the same receipt produces the same
// id and upserts instead of duplicating. seq disambiguates genuinely
// distinct receipts from the same merchant on the same day; pass 0 for
// the common case.
func NewPurchaseID(merchant, date string, seq int) string {
	id := slugify(merchant) + "-" + date
	if seq > 0 {
		id = fmt.Sprintf("%s-%d", id, seq)
	}
	return id
}

// slugify lowercases the merchant name and collapses anything that is
// not a letter or digit into single dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// CanonicalCategory maps arbitrary category text onto the closed set,
// case-insensitively. Unknown or empty input becomes DefaultCategory.
func CanonicalCategory(s string) string {
	want := strings.ToLower(strings.TrimSpace(s))
	if want == "" {
		return DefaultCategory
	}
	for _, c := range Categories {
		if strings.ToLower(c) == want {
			return c
		}
	}
	return DefaultCategory
}
