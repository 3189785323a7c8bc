// Package warehouse exports the purchase ledger into BigQuery for
// long-term analytics. The warehouse is append-only and downstream of
// the embedded store; the store stays the source of truth.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
)

const (
	purchasesTable = "purchases"
	itemsTable     = "purchase_items"
)

// PurchaseRow is the warehouse shape of one purchase.
type PurchaseRow struct {
	PurchaseID      string            `bigquery:"purchase_id"`      // REQUIRED
	MerchantName    string            `bigquery:"merchant_name"`    // REQUIRED
	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // DATE, NULLABLE
	TotalAmount     float64           `bigquery:"total_amount"`     // NUMERIC, REQUIRED
	Currency        string            `bigquery:"currency"`         // REQUIRED
	PaymentMethod   string            `bigquery:"payment_method"`   // NULLABLE
	ItemCount       int               `bigquery:"item_count"`       // REQUIRED
	ExportedTS      time.Time         `bigquery:"exported_ts"`      // REQUIRED
}

// ItemRow is the warehouse shape of one purchase line item.
type ItemRow struct {
	PurchaseID string    `bigquery:"purchase_id"` // REQUIRED
	Name       string    `bigquery:"name"`        // REQUIRED
	Price      float64   `bigquery:"price"`       // NUMERIC, REQUIRED
	Quantity   int       `bigquery:"quantity"`    // REQUIRED
	Category   string    `bigquery:"category"`    // REQUIRED
	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// Exporter writes purchases to a BigQuery dataset.
type Exporter struct {
	project string
	dataset string
}

// NewExporter creates an exporter for the given project and dataset.
func NewExporter(project, dataset string) *Exporter {
	return &Exporter{project: project, dataset: dataset}
}

// Export inserts the given purchases plus their items. Each call opens
// its own client so the exporter carries no connection state between
// runs.
func (e *Exporter) Export(ctx context.Context, purchases []ledger.Purchase) error {
	client, err := bigquery.NewClient(ctx, e.project)
	if err != nil {
		return fmt.Errorf("Export: bigquery client: %w", err)
	}
	defer client.Close()

	return e.ExportWithClient(ctx, client, purchases)
}

// ExportWithClient inserts the given purchases using the provided
// BigQuery client.
func (e *Exporter) ExportWithClient(ctx context.Context, client *bigquery.Client, purchases []ledger.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}

	now := time.Now().UTC()
	purchaseRows := make([]*PurchaseRow, 0, len(purchases))
	var itemRows []*ItemRow
	for i := range purchases {
		p := &purchases[i]
		purchaseRows = append(purchaseRows, toPurchaseRow(p, now))
		for _, item := range p.Items {
			itemRows = append(itemRows, &ItemRow{
				PurchaseID: p.ID,
				Name:       item.Name,
				Price:      item.Price,
				Quantity:   item.Quantity,
				Category:   item.Category,
				ExportedTS: now,
			})
		}
	}

	ds := client.DatasetInProject(e.project, e.dataset)
	if err := ds.Table(purchasesTable).Inserter().Put(ctx, purchaseRows); err != nil {
		return fmt.Errorf("Export: inserting purchase rows: %w", err)
	}
	if len(itemRows) > 0 {
		if err := ds.Table(itemsTable).Inserter().Put(ctx, itemRows); err != nil {
			return fmt.Errorf("Export: inserting item rows: %w", err)
		}
	}
	return nil
}

// CountExported returns how many purchase rows the warehouse holds for
// the given date range, inclusive on both ends.
func (e *Exporter) CountExported(ctx context.Context, start, end string) (int64, error) {
	client, err := bigquery.NewClient(ctx, e.project)
	if err != nil {
		return 0, fmt.Errorf("CountExported: bigquery client: %w", err)
	}
	defer client.Close()

	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s.%s
		WHERE transaction_date >= @start_date
		  AND transaction_date <= @end_date
	`, e.dataset, purchasesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: start},
		{Name: "end_date", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountExported: query read: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("CountExported: iter next: %w", err)
	}
	return row.N, nil
}

// toPurchaseRow maps a ledger purchase onto its warehouse row. Dates
// that never parsed as YYYY-MM-DD export as NULL rather than failing
// the whole batch.
func toPurchaseRow(p *ledger.Purchase, exportedTS time.Time) *PurchaseRow {
	row := &PurchaseRow{
		PurchaseID:    p.ID,
		MerchantName:  p.MerchantName,
		TotalAmount:   p.TotalAmount,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
		ItemCount:     len(p.Items),
		ExportedTS:    exportedTS,
	}
	if d, err := civil.ParseDate(p.TransactionDate); err == nil {
		row.TransactionDate = bigquery.NullDate{Date: d, Valid: true}
	}
	return row
}
