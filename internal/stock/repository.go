package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// RepositoryPort abstracts persistence used by the stock service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes stock operations inside a transaction.
type TxRepository interface {
	ResolveProduct(ctx context.Context, ownerID int64, line Line) (int64, error)
	AddStock(ctx context.Context, ownerID, productID, delta int64) error
	Ledger(ctx context.Context, invoiceID int64) (map[int64]int64, error)
	SetLedger(ctx context.Context, invoiceID, productID, quantity int64) error
	ClearLedger(ctx context.Context, invoiceID int64) error
}

// Repository provides PostgreSQL backed stock persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in a read-committed transaction so concurrent invoices
// touching the same product serialise on the row lock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIso(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

// ResolveProduct finds the owner's product by id, then by case-sensitive exact name.
func (t *txRepo) ResolveProduct(ctx context.Context, ownerID int64, line Line) (int64, error) {
	var id int64
	if line.ProductID > 0 {
		cond := shared.NewConditions(shared.Scope{OwnerID: ownerID}, "").Add("id = %s", line.ProductID)
		err := t.tx.QueryRow(ctx, `SELECT id FROM products `+cond.Where(), cond.Args()...).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
	}
	if line.Name == "" {
		return 0, ErrProductNotResolved
	}
	cond := shared.NewConditions(shared.Scope{OwnerID: ownerID}, "").Add("name = %s", line.Name)
	err := t.tx.QueryRow(ctx, `SELECT id FROM products `+cond.Where()+` ORDER BY id LIMIT 1`, cond.Args()...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotResolved
	}
	return id, err
}

// AddStock applies a signed delta atomically. Removed products still take
// the delta so releasing an old invoice restores their count.
func (t *txRepo) AddStock(ctx context.Context, ownerID, productID, delta int64) error {
	cond := shared.NewConditions(shared.Scope{OwnerID: ownerID}.WithRemoved(), "").Add("id = %s", productID)
	_, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock + `+cond.Bind(delta)+`, updated_at = NOW() `+cond.Where(), cond.Args()...)
	return err
}

// Ledger returns the quantities already deducted for an invoice, keyed by product.
func (t *txRepo) Ledger(ctx context.Context, invoiceID int64) (map[int64]int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT product_id, quantity FROM stock_movements WHERE invoice_id = $1 FOR UPDATE`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]int64)
	for rows.Next() {
		var productID, qty int64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		out[productID] = qty
	}
	return out, rows.Err()
}

// SetLedger records the quantity now deducted for a product on an invoice.
func (t *txRepo) SetLedger(ctx context.Context, invoiceID, productID, quantity int64) error {
	if quantity == 0 {
		_, err := t.tx.Exec(ctx, `DELETE FROM stock_movements WHERE invoice_id = $1 AND product_id = $2`, invoiceID, productID)
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_movements (invoice_id, product_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (invoice_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
		invoiceID, productID, quantity)
	return err
}

// ClearLedger drops every movement recorded for the invoice.
func (t *txRepo) ClearLedger(ctx context.Context, invoiceID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM stock_movements WHERE invoice_id = $1`, invoiceID)
	return err
}

var _ RepositoryPort = (*Repository)(nil)
