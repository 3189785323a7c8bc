package normalize

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func TestNormalize_AliasedFieldsAndMissingDate(t *testing.T) {
	doc := map[string]any{
		"store": "Walmart",
		"total": 11.63,
		"items": []any{
			map[string]any{"name": "Milk", "price": 3.99},
		},
	}

	p, err := normalizeAt(doc, testNow)
	if err != nil {
		t.Fatalf("normalizeAt returned error: %v", err)
	}

	if p.MerchantName != "Walmart" {
		t.Errorf("MerchantName = %q, want Walmart", p.MerchantName)
	}
	if p.TotalAmount != 11.63 {
		t.Errorf("TotalAmount = %v, want 11.63", p.TotalAmount)
	}
	if p.TransactionDate != "2024-06-15" {
		t.Errorf("TransactionDate = %q, want today fallback 2024-06-15", p.TransactionDate)
	}
	if len(p.Notes) == 0 {
		t.Error("expected a note documenting the date fallback")
	}
	if len(p.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(p.Items))
	}
	it := p.Items[0]
	if it.Name != "Milk" || it.Price != 3.99 || it.Quantity != 1 || it.Category != "Other" {
		t.Errorf("item = %+v, want Milk/3.99/1/Other", it)
	}
}

func TestNormalize_CanonicalKeysWinOverAliases(t *testing.T) {
	doc := map[string]any{
		"merchant_name": "Target",
		"store":         "Walmart",
		"total_amount":  20.0,
		"total":         99.0,
	}

	p, err := normalizeAt(doc, testNow)
	if err != nil {
		t.Fatalf("normalizeAt returned error: %v", err)
	}
	if p.MerchantName != "Target" {
		t.Errorf("MerchantName = %q, alias must not override canonical key", p.MerchantName)
	}
	if p.TotalAmount != 20.0 {
		t.Errorf("TotalAmount = %v, alias must not override canonical key", p.TotalAmount)
	}
}

func TestNormalize_HardRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{
			name: "missing merchant",
			doc:  map[string]any{"total_amount": 5.0},
		},
		{
			name: "missing total",
			doc:  map[string]any{"merchant_name": "Shop"},
		},
		{
			name: "uncoercible total",
			doc:  map[string]any{"merchant_name": "Shop", "total_amount": "eleven"},
		},
		{
			name: "negative total",
			doc:  map[string]any{"merchant_name": "Shop", "total_amount": -4.0},
		},
		{
			name: "nil document",
			doc:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := normalizeAt(tt.doc, testNow)
			if p != nil {
				t.Errorf("expected nil purchase, got %+v", p)
			}
			if !errors.Is(err, ErrNoPurchase) {
				t.Errorf("err = %v, want ErrNoPurchase", err)
			}
		})
	}
}

func TestNormalize_DateFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"iso", "2024-05-01", "2024-05-01"},
		{"us slash", "05/01/2024", "2024-05-01"},
		{"iso slash", "2024/05/01", "2024-05-01"},
		{"long month", "May 1, 2024", "2024-05-01"},
		{"day first long", "1 May 2024", "2024-05-01"},
		{"unparseable kept verbatim", "2024-13-45", "2024-13-45"},
		{"garbage kept verbatim", "last tuesday", "last tuesday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := map[string]any{
				"merchant_name":    "Shop",
				"transaction_date": tt.input,
				"total_amount":     5.0,
			}
			p, err := normalizeAt(doc, testNow)
			if err != nil {
				t.Fatalf("normalizeAt returned error: %v", err)
			}
			if p.TransactionDate != tt.want {
				t.Errorf("TransactionDate = %q, want %q", p.TransactionDate, tt.want)
			}
			if len(p.Notes) != 0 {
				t.Errorf("date was present; no fallback note expected, got %v", p.Notes)
			}
		})
	}
}

func TestNormalize_ItemFiltering(t *testing.T) {
	doc := map[string]any{
		"merchant_name":    "Market",
		"transaction_date": "2024-05-01",
		"total_amount":     30.0,
		"items": []any{
			map[string]any{"name": "Apples", "price": 4.5, "quantity": 2.0, "category": "grocery"},
			map[string]any{"price": 1.0},                             // no name: dropped
			map[string]any{"name": "Mystery"},                        // no price: dropped
			map[string]any{"name": "Broken", "price": "not a price"}, // uncoercible: dropped
			map[string]any{"name": "Refund", "price": -2.0},          // negative: dropped
			map[string]any{"name": "Soap", "price": "3.25"},          // string price coerces
			"not an object", // dropped
		},
	}

	p, err := normalizeAt(doc, testNow)
	if err != nil {
		t.Fatalf("normalizeAt returned error: %v", err)
	}
	if len(p.Items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(p.Items), p.Items)
	}
	if p.Items[0].Name != "Apples" || p.Items[0].Quantity != 2 || p.Items[0].Category != "Grocery" {
		t.Errorf("first item = %+v, want Apples qty 2 Grocery", p.Items[0])
	}
	if p.Items[1].Name != "Soap" || p.Items[1].Price != 3.25 {
		t.Errorf("second item = %+v, want Soap 3.25", p.Items[1])
	}
}

func TestNormalize_FallbackItem(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{
			name: "no items key",
			doc: map[string]any{
				"merchant_name":    "Kiosk",
				"transaction_date": "2024-05-01",
				"total_amount":     7.5,
			},
		},
		{
			name: "all items dropped",
			doc: map[string]any{
				"merchant_name":    "Kiosk",
				"transaction_date": "2024-05-01",
				"total_amount":     7.5,
				"items": []any{
					map[string]any{"price": 1.0},
					map[string]any{"name": "x"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := normalizeAt(tt.doc, testNow)
			if err != nil {
				t.Fatalf("normalizeAt returned error: %v", err)
			}
			if len(p.Items) != 1 {
				t.Fatalf("got %d items, want exactly one fallback item", len(p.Items))
			}
			it := p.Items[0]
			if it.Name != "Receipt total" || it.Price != 7.5 || it.Quantity != 1 || it.Category != "Other" {
				t.Errorf("fallback item = %+v", it)
			}
		})
	}
}

func TestNormalize_DefaultsAndPassthrough(t *testing.T) {
	doc := map[string]any{
		"merchant_name":    "Cafe",
		"transaction_date": "2024-05-01",
		"total_amount":     9,
		"payment_method":   "VISA ****1234",
		"tax_information":  map[string]any{"sales_tax": 0.72, "tax_rate": 0.08},
	}

	p, err := normalizeAt(doc, testNow)
	if err != nil {
		t.Fatalf("normalizeAt returned error: %v", err)
	}
	if p.Currency != "USD" {
		t.Errorf("Currency = %q, want defaulted USD", p.Currency)
	}
	if p.PaymentMethod != "VISA ****1234" {
		t.Errorf("PaymentMethod = %q, want passthrough", p.PaymentMethod)
	}
	if p.TotalAmount != 9 {
		t.Errorf("TotalAmount = %v, int total must coerce", p.TotalAmount)
	}
	if p.ID != "cafe-2024-05-01" {
		t.Errorf("ID = %q, want deterministic cafe-2024-05-01", p.ID)
	}
}

func TestNormalize_ExplicitCurrency(t *testing.T) {
	doc := map[string]any{
		"merchant_name":    "Boots",
		"transaction_date": "2024-05-01",
		"total_amount":     12.0,
		"currency":         "GBP",
	}
	p, err := normalizeAt(doc, testNow)
	if err != nil {
		t.Fatalf("normalizeAt returned error: %v", err)
	}
	if p.Currency != "GBP" {
		t.Errorf("Currency = %q, want GBP", p.Currency)
	}
}

func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		{"float64", 3.99, 3.99, true},
		{"int", 4, 4, true},
		{"numeric string", " 2.5 ", 2.5, true},
		{"bad string", "abc", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerceFloat(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("coerceFloat(%v) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
