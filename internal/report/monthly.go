// Package report builds monthly spending reports from the purchase
// ledger: deterministic aggregation first, then an optional
// model-written narrative on top of the numbers.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

// Summary holds the aggregated numbers for one calendar month. All
// amounts are in the ledger's display currency.
type Summary struct {
	Year  int
	Month time.Month

	TotalSpent    float64
	PurchaseCount int

	ByCategory map[string]float64
	ByMerchant map[string]float64
	ByDay      map[string]float64

	// TopDays and TopMerchants are the three largest entries of ByDay
	// and ByMerchant, largest first.
	TopDays      []Entry
	TopMerchants []Entry

	// Biggest is the single largest purchase of the month, nil when
	// the month is empty.
	Biggest *ledger.Purchase
}

// Entry is one named amount in a ranked breakdown.
type Entry struct {
	Name   string
	Amount float64
}

// MonthLabel returns e.g. "April 2025".
func (s *Summary) MonthLabel() string {
	return fmt.Sprintf("%s %d", s.Month.String(), s.Year)
}

// Generator builds monthly reports from a store. When a Narrator is
// set, Monthly returns its prose instead of the plain rendering.
type Generator struct {
	store    store.Store
	narrator Narrator
}

// New creates a report generator. narrator may be nil, in which case
// reports are the plain-text rendering of the aggregated summary.
func New(s store.Store, narrator Narrator) *Generator {
	return &Generator{store: s, narrator: narrator}
}

// Build aggregates all purchases of the given month.
func (g *Generator) Build(ctx context.Context, year int, month time.Month) *Summary {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	purchases := g.store.GetPurchasesByDateRange(ctx,
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	sum := &Summary{
		Year:       year,
		Month:      month,
		ByCategory: make(map[string]float64),
		ByMerchant: make(map[string]float64),
		ByDay:      make(map[string]float64),
	}

	for i := range purchases {
		p := &purchases[i]
		sum.TotalSpent += p.TotalAmount
		sum.PurchaseCount++
		sum.ByMerchant[p.MerchantName] += p.TotalAmount
		sum.ByDay[p.TransactionDate] += p.TotalAmount
		for _, item := range p.Items {
			cat := item.Category
			if cat == "" {
				cat = ledger.DefaultCategory
			}
			sum.ByCategory[cat] += item.Price * float64(max(item.Quantity, 1))
		}
		if sum.Biggest == nil || p.TotalAmount > sum.Biggest.TotalAmount {
			biggest := purchases[i]
			sum.Biggest = &biggest
		}
	}

	sum.TopDays = topEntries(sum.ByDay, 3)
	sum.TopMerchants = topEntries(sum.ByMerchant, 3)
	return sum
}

// Monthly builds the month's summary and renders it. With a narrator
// configured the rendered numbers are handed to the model for a prose
// report; narration failures fall back to the plain rendering rather
// than losing the report.
func (g *Generator) Monthly(ctx context.Context, year int, month time.Month) (string, error) {
	sum := g.Build(ctx, year, month)
	if sum.PurchaseCount == 0 {
		return fmt.Sprintf("No spending data for %s.", sum.MonthLabel()), nil
	}

	plain := Render(sum)
	if g.narrator == nil {
		return plain, nil
	}

	prose, err := g.narrator.Narrate(ctx, plain)
	if err != nil || strings.TrimSpace(prose) == "" {
		return plain, nil
	}
	return prose, nil
}

// Render formats the summary as a plain-text report.
func Render(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spending report for %s\n", s.MonthLabel())
	fmt.Fprintf(&b, "Total spent: $%.2f across %d purchases\n", s.TotalSpent, s.PurchaseCount)

	if len(s.TopDays) > 0 {
		b.WriteString("Top spending days:\n")
		for _, e := range s.TopDays {
			fmt.Fprintf(&b, "  - %s: $%.2f\n", e.Name, e.Amount)
		}
	}
	if len(s.TopMerchants) > 0 {
		b.WriteString("Top merchants by spend:\n")
		for _, e := range s.TopMerchants {
			fmt.Fprintf(&b, "  - %s: $%.2f\n", e.Name, e.Amount)
		}
	}
	if len(s.ByCategory) > 0 {
		b.WriteString("Spend by category:\n")
		for _, e := range topEntries(s.ByCategory, len(s.ByCategory)) {
			fmt.Fprintf(&b, "  - %s: $%.2f\n", e.Name, e.Amount)
		}
	}
	if s.Biggest != nil {
		fmt.Fprintf(&b, "Largest purchase: %s at %s for $%.2f\n",
			s.Biggest.ID, s.Biggest.MerchantName, s.Biggest.TotalAmount)
	}
	return b.String()
}

// topEntries returns the n largest entries of m, largest first, ties
// broken by name so the ordering is stable.
func topEntries(m map[string]float64, n int) []Entry {
	entries := make([]Entry, 0, len(m))
	for name, amount := range m {
		entries = append(entries, Entry{Name: name, Amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Amount != entries[j].Amount {
			return entries[i].Amount > entries[j].Amount
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
