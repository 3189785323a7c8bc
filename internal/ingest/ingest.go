// Package ingest orchestrates the receipt pipeline: extraction
// service → normalizer → store. It is the only place a raw extraction
// document is allowed to become durable rows.
package ingest

import (
	"context"
	"fmt"

	"github.com/dvloznov/receipt-ledger/internal/extract"
	"github.com/dvloznov/receipt-ledger/internal/imagestore"
	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/normalize"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

// Pipeline processes receipt images into stored purchases.
type Pipeline struct {
	extractor extract.Extractor
	store     store.Store
}

// New creates a pipeline over the given extractor and store.
func New(e extract.Extractor, s store.Store) *Pipeline {
	return &Pipeline{extractor: e, store: s}
}

// ProcessReceipt runs one receipt image through extraction and
// normalization, then persists the resulting purchase. A document the
// normalizer cannot repair fails with normalize.ErrNoPurchase and
// writes nothing; callers treat that as "nothing to save", not a
// crash.
func (p *Pipeline) ProcessReceipt(ctx context.Context, imageBytes []byte, mimeType string) (*ledger.Purchase, error) {
	log := logger.FromContext(ctx)

	doc, err := p.extractor.ExtractReceipt(ctx, imageBytes, mimeType)
	if err != nil {
		return nil, fmt.Errorf("ProcessReceipt: extracting receipt: %w", err)
	}

	purchase, err := normalize.Normalize(doc)
	if err != nil {
		log.Info().Err(err).Msg("Extraction produced no usable purchase")
		return nil, fmt.Errorf("ProcessReceipt: %w", err)
	}

	id, err := p.store.AddPurchase(ctx, purchase)
	if err != nil {
		return nil, fmt.Errorf("ProcessReceipt: storing purchase: %w", err)
	}

	log.Info().
		Str("purchase_id", id).
		Str("merchant", purchase.MerchantName).
		Str("date", purchase.TransactionDate).
		Float64("total", purchase.TotalAmount).
		Int("items", len(purchase.Items)).
		Msg("Receipt processed")

	return purchase, nil
}

// ProcessReceiptURI fetches a previously archived receipt image from
// GCS and processes it.
func (p *Pipeline) ProcessReceiptURI(ctx context.Context, gcsURI string) (*ledger.Purchase, error) {
	imageBytes, err := imagestore.FetchReceipt(ctx, gcsURI)
	if err != nil {
		return nil, fmt.Errorf("ProcessReceiptURI: %w", err)
	}
	return p.ProcessReceipt(ctx, imageBytes, imagestore.MimeTypeForURI(gcsURI))
}

// AddDocument normalizes and stores an already-extracted document,
// the programmatic insertion path used by editors and import scripts.
func (p *Pipeline) AddDocument(ctx context.Context, doc map[string]any) (*ledger.Purchase, error) {
	purchase, err := normalize.Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("AddDocument: %w", err)
	}
	if _, err := p.store.AddPurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("AddDocument: storing purchase: %w", err)
	}
	return purchase, nil
}
