// Package sqlite is the embedded relational backend for the purchase
// ledger, a single local file with the fixed two-table schema.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

// DefaultPath is used when no store location is configured.
const DefaultPath = "data/purchases.db"

const schema = `
CREATE TABLE IF NOT EXISTS purchases (
	id TEXT PRIMARY KEY,
	merchant_name TEXT NOT NULL,
	transaction_date TEXT NOT NULL,
	total_amount REAL NOT NULL,
	currency TEXT DEFAULT 'USD',
	payment_method TEXT,
	notes TEXT
);
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	purchase_id TEXT NOT NULL REFERENCES purchases(id),
	name TEXT NOT NULL,
	price REAL NOT NULL,
	quantity INTEGER DEFAULT 1,
	category TEXT DEFAULT 'Other'
);
`

// Store persists purchases in a local sqlite file. Safe for use from a
// single process; concurrent writers get whatever serialization the
// engine provides natively.
type Store struct {
	db   *sql.DB
	path string
	log  zerolog.Logger
}

// Open opens (or creates) the database at path and ensures the schema
// exists. An empty path falls back to DefaultPath, creating its parent
// directory if needed.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("Open: creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Open: creating schema: %w", err)
	}

	return &Store{db: db, path: path, log: log}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// AddPurchase upserts the purchase. On an id collision the scalar
// fields are replaced and the entire item set is deleted and
// reinserted; items are never merged. All statements run inside one
// transaction, so the purchase row and every item row land together
// or not at all.
func (s *Store) AddPurchase(ctx context.Context, p *ledger.Purchase) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("AddPurchase: begin tx: %w", err)
	}
	defer tx.Rollback()

	notes, err := encodeNotes(p.Notes)
	if err != nil {
		return "", fmt.Errorf("AddPurchase: encoding notes: %w", err)
	}

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM purchases WHERE id = ?`, p.ID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO purchases (id, merchant_name, transaction_date, total_amount, currency, payment_method, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.MerchantName, p.TransactionDate, p.TotalAmount, p.Currency, nullString(p.PaymentMethod), notes)
		if err != nil {
			return "", fmt.Errorf("AddPurchase: inserting purchase %s: %w", p.ID, err)
		}
	case err != nil:
		return "", fmt.Errorf("AddPurchase: checking for existing purchase %s: %w", p.ID, err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE purchases
			SET merchant_name = ?, transaction_date = ?, total_amount = ?, currency = ?, payment_method = ?, notes = ?
			WHERE id = ?`,
			p.MerchantName, p.TransactionDate, p.TotalAmount, p.Currency, nullString(p.PaymentMethod), notes, p.ID)
		if err != nil {
			return "", fmt.Errorf("AddPurchase: updating purchase %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE purchase_id = ?`, p.ID); err != nil {
			return "", fmt.Errorf("AddPurchase: clearing items for %s: %w", p.ID, err)
		}
	}

	for _, it := range p.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO items (purchase_id, name, price, quantity, category)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, it.Name, it.Price, it.Quantity, it.Category)
		if err != nil {
			return "", fmt.Errorf("AddPurchase: inserting item %q for %s: %w", it.Name, p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("AddPurchase: commit: %w", err)
	}
	return p.ID, nil
}

// DeletePurchase removes the purchase's items first to satisfy the
// foreign key, then the purchase row. A missing id is a no-op.
func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("DeletePurchase: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE purchase_id = ?`, id); err != nil {
		return fmt.Errorf("DeletePurchase: deleting items for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeletePurchase: deleting purchase %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("DeletePurchase: commit: %w", err)
	}
	return nil
}

// GetAllPurchases returns the full ledger, each purchase rehydrated
// with its items.
func (s *Store) GetAllPurchases(ctx context.Context) []ledger.Purchase {
	return s.queryPurchases(ctx, "GetAllPurchases", `SELECT id, merchant_name, transaction_date, total_amount, currency, payment_method, notes FROM purchases`)
}

// GetPurchasesByMerchant matches merchant_name case-insensitively by
// substring.
func (s *Store) GetPurchasesByMerchant(ctx context.Context, merchant string) []ledger.Purchase {
	return s.queryPurchases(ctx, "GetPurchasesByMerchant",
		`SELECT id, merchant_name, transaction_date, total_amount, currency, payment_method, notes
		 FROM purchases WHERE LOWER(merchant_name) LIKE '%' || LOWER(?) || '%'`, merchant)
}

// GetPurchasesByCategory returns purchases owning at least one item in
// a matching category; DISTINCT keeps each purchase to one row even
// when several items match.
func (s *Store) GetPurchasesByCategory(ctx context.Context, category string) []ledger.Purchase {
	return s.queryPurchases(ctx, "GetPurchasesByCategory",
		`SELECT DISTINCT p.id, p.merchant_name, p.transaction_date, p.total_amount, p.currency, p.payment_method, p.notes
		 FROM purchases p
		 JOIN items i ON p.id = i.purchase_id
		 WHERE LOWER(i.category) LIKE '%' || LOWER(?) || '%'`, category)
}

// GetPurchasesByDateRange returns purchases with start <= date <= end,
// bounds inclusive.
func (s *Store) GetPurchasesByDateRange(ctx context.Context, start, end string) []ledger.Purchase {
	return s.queryPurchases(ctx, "GetPurchasesByDateRange",
		`SELECT id, merchant_name, transaction_date, total_amount, currency, payment_method, notes
		 FROM purchases WHERE transaction_date BETWEEN ? AND ?`, start, end)
}

// ExecuteQuery runs an ad-hoc read query and returns rows as
// column-name-keyed maps. Anything that does not start with SELECT is
// rejected before touching the database.
func (s *Store) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	if !store.IsSelect(query) {
		return nil, fmt.Errorf("ExecuteQuery: %w", store.ErrQueryNotAllowed)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ExecuteQuery: running query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("ExecuteQuery: reading columns: %w", err)
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("ExecuteQuery: scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ExecuteQuery: iterating rows: %w", err)
	}
	return results, nil
}

// queryPurchases runs a purchase-row query and rehydrates each result
// with its items. Read failures degrade to an empty slice; the error
// is logged because swallowing it silently would hide real problems.
func (s *Store) queryPurchases(ctx context.Context, op, query string, args ...any) []ledger.Purchase {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("Purchase query failed; returning empty result")
		return []ledger.Purchase{}
	}
	defer rows.Close()

	purchases := []ledger.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			s.log.Error().Err(err).Str("op", op).Msg("Purchase scan failed; returning empty result")
			return []ledger.Purchase{}
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("Purchase iteration failed; returning empty result")
		return []ledger.Purchase{}
	}

	for i := range purchases {
		items, err := s.loadItems(ctx, purchases[i].ID)
		if err != nil {
			s.log.Error().Err(err).Str("op", op).Str("purchase_id", purchases[i].ID).Msg("Item load failed; returning empty result")
			return []ledger.Purchase{}
		}
		purchases[i].Items = items
	}
	return purchases
}

// scanPurchase reads one purchase row field by field, so a schema
// change breaks here instead of at some later row unpacking.
func scanPurchase(rows *sql.Rows) (ledger.Purchase, error) {
	var (
		p         ledger.Purchase
		payment   sql.NullString
		notesJSON sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.MerchantName, &p.TransactionDate, &p.TotalAmount, &p.Currency, &payment, &notesJSON); err != nil {
		return ledger.Purchase{}, err
	}
	if payment.Valid {
		p.PaymentMethod = payment.String
	}
	if notesJSON.Valid && notesJSON.String != "" {
		if err := json.Unmarshal([]byte(notesJSON.String), &p.Notes); err != nil {
			return ledger.Purchase{}, fmt.Errorf("decoding notes for %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func (s *Store) loadItems(ctx context.Context, purchaseID string) ([]ledger.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, price, quantity, category FROM items WHERE purchase_id = ? ORDER BY id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ledger.LineItem
	for rows.Next() {
		var it ledger.LineItem
		if err := rows.Scan(&it.Name, &it.Price, &it.Quantity, &it.Category); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func encodeNotes(notes []string) (sql.NullString, error) {
	if len(notes) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(notes)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ store.Store = (*Store)(nil)
