// Package memstore is the in-memory fallback backend for the purchase
// ledger. It honors the same behavioral contract as the sqlite backend
// but loses data on restart; useful for tests and for running without
// a writable filesystem.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

// Store keeps purchases in memory, ordered by first insertion. Safe
// for concurrent use.
type Store struct {
	mu        sync.RWMutex
	purchases map[string]*ledger.Purchase
	order     []string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{purchases: make(map[string]*ledger.Purchase)}
}

// Close is a no-op; there is nothing to release.
func (s *Store) Close() error { return nil }

// AddPurchase upserts the purchase: an existing id keeps its position
// but has its scalar fields and entire item set replaced.
func (s *Store) AddPurchase(ctx context.Context, p *ledger.Purchase) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("AddPurchase: purchase id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.purchases[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	cp := clonePurchase(p)
	s.purchases[p.ID] = &cp
	return p.ID, nil
}

// DeletePurchase removes the purchase and its items. Absent ids are a
// no-op.
func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.purchases[id]; !exists {
		return nil
	}
	delete(s.purchases, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetAllPurchases returns every purchase in insertion order.
func (s *Store) GetAllPurchases(ctx context.Context) []ledger.Purchase {
	return s.filter(func(*ledger.Purchase) bool { return true })
}

// GetPurchasesByMerchant matches merchant_name case-insensitively by
// substring.
func (s *Store) GetPurchasesByMerchant(ctx context.Context, merchant string) []ledger.Purchase {
	want := strings.ToLower(merchant)
	return s.filter(func(p *ledger.Purchase) bool {
		return strings.Contains(strings.ToLower(p.MerchantName), want)
	})
}

// GetPurchasesByCategory returns purchases owning at least one item in
// a matching category, each purchase once.
func (s *Store) GetPurchasesByCategory(ctx context.Context, category string) []ledger.Purchase {
	want := strings.ToLower(category)
	return s.filter(func(p *ledger.Purchase) bool {
		for _, it := range p.Items {
			if strings.Contains(strings.ToLower(it.Category), want) {
				return true
			}
		}
		return false
	})
}

// GetPurchasesByDateRange returns purchases with start <= date <= end.
func (s *Store) GetPurchasesByDateRange(ctx context.Context, start, end string) []ledger.Purchase {
	return s.filter(func(p *ledger.Purchase) bool {
		return p.TransactionDate >= start && p.TransactionDate <= end
	})
}

// ExecuteQuery applies the same SELECT guard as the relational
// backend, then reports that ad-hoc SQL is unsupported here: there is
// no SQL engine behind this backend.
func (s *Store) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	if !store.IsSelect(query) {
		return nil, fmt.Errorf("ExecuteQuery: %w", store.ErrQueryNotAllowed)
	}
	return nil, fmt.Errorf("ExecuteQuery: ad-hoc SQL is not supported by the in-memory store")
}

func (s *Store) filter(keep func(*ledger.Purchase) bool) []ledger.Purchase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []ledger.Purchase{}
	for _, id := range s.order {
		p := s.purchases[id]
		if keep(p) {
			out = append(out, clonePurchase(p))
		}
	}
	return out
}

// clonePurchase deep-copies so callers can never mutate stored state.
func clonePurchase(p *ledger.Purchase) ledger.Purchase {
	cp := *p
	if p.Notes != nil {
		cp.Notes = append([]string(nil), p.Notes...)
	}
	cp.Items = append([]ledger.LineItem(nil), p.Items...)
	return cp
}

var _ store.Store = (*Store)(nil)
