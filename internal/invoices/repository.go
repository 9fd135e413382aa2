package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// RepositoryPort abstracts invoice persistence.
type RepositoryPort interface {
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Get(ctx context.Context, scope shared.Scope, id int64) (Invoice, error)
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (Invoice, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error)
	ListForClient(ctx context.Context, ownerID, clientID int64) ([]Invoice, error)
	Update(ctx context.Context, scope shared.Scope, inv Invoice, entry shared.AuditEntry) (Invoice, error)
	SoftDelete(ctx context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) error
	// Transition moves the invoice to `to` only if its current status is in `from`.
	Transition(ctx context.Context, scope shared.Scope, id int64, from []Status, to Status, entry shared.AuditEntry) (Invoice, error)
	// RecordPayment adds amount to amount_paid in a single statement.
	RecordPayment(ctx context.Context, scope shared.Scope, id int64, amount decimal.Decimal, entry shared.AuditEntry) (Invoice, error)
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func invoiceColumns(alias string) string {
	cols := []string{"id", "public_id", "number", "year", "client_id", "date", "expired_date", "items", "currency",
		"sub_total", "tax_rate", "tax_total", "discount", "credit", "total", "amount_paid", "status",
		"payment_status", "notes", "converted_quote_id", "audit_log", "removed", "created_by", "created_at", "updated_at"}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// selectFrom reads invoices joined with their client. source is a table or CTE aliased as i.
func selectFrom(source string) string {
	return `SELECT ` + invoiceColumns("i") + `, c.name, c.email FROM ` + source + ` i JOIN clients c ON c.id = i.client_id `
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var client ClientSummary
	err := row.Scan(&inv.ID, &inv.PublicID, &inv.Number, &inv.Year, &inv.ClientID, &inv.Date, &inv.ExpiredDate,
		&inv.Items, &inv.Currency, &inv.SubTotal, &inv.TaxRate, &inv.TaxTotal, &inv.Discount, &inv.Credit,
		&inv.Total, &inv.AmountPaid, &inv.Status, &inv.PaymentStatus, &inv.Notes, &inv.ConvertedQuoteID,
		&inv.AuditLog, &inv.Removed, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt, &client.Name, &client.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	client.ID = inv.ClientID
	inv.Client = &client
	return inv, nil
}

func collect(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Create inserts an invoice.
func (r *Repository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		WITH i AS (
			INSERT INTO invoices (public_id, number, year, client_id, date, expired_date, items, currency,
				sub_total, tax_rate, tax_total, discount, credit, total, amount_paid, status, payment_status,
				notes, converted_quote_id, audit_log, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			RETURNING *
		)`+selectFrom("i"),
		inv.PublicID, inv.Number, inv.Year, inv.ClientID, inv.Date, inv.ExpiredDate, inv.Items, inv.Currency,
		inv.SubTotal, inv.TaxRate, inv.TaxTotal, inv.Discount, inv.Credit, inv.Total, inv.AmountPaid, inv.Status,
		inv.PaymentStatus, inv.Notes, inv.ConvertedQuoteID, inv.AuditLog, inv.CreatedBy)
	created, err := scanInvoice(row)
	if db.IsUniqueViolation(err) {
		return Invoice{}, ErrDuplicateNumber
	}
	return created, err
}

// Get loads an invoice within scope.
func (r *Repository) Get(ctx context.Context, scope shared.Scope, id int64) (Invoice, error) {
	cond := shared.NewConditions(scope, "i").Add("i.id = %s", id)
	return scanInvoice(r.pool.QueryRow(ctx, selectFrom("invoices")+cond.Where(), cond.Args()...))
}

// GetByPublicID loads a non-removed invoice by its public identifier.
func (r *Repository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, selectFrom("invoices")+`WHERE i.public_id = $1 AND NOT i.removed`, publicID))
}

// List returns a page of invoices, newest first.
func (r *Repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error) {
	params := filter.Normalize()
	cond := shared.NewConditions(scope, "i")
	if filter.Status != "" {
		cond.Add("i.status = %s", filter.Status)
	}
	if filter.PaymentStatus != "" {
		cond.Add("i.payment_status = %s", filter.PaymentStatus)
	}
	if filter.ClientID > 0 {
		cond.Add("i.client_id = %s", filter.ClientID)
	}
	if params.Search != "" {
		cond.Search(params.Search, "c.name", "i.number::text", "i.notes")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices i JOIN clients c ON c.id = i.client_id `+cond.Where(), cond.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	where := cond.Where()
	limit, offset := cond.Bind(params.PerPage), cond.Bind(params.Offset())
	rows, err := r.pool.Query(ctx, selectFrom("invoices")+where+` ORDER BY i.date DESC, i.id DESC LIMIT `+limit+` OFFSET `+offset, cond.Args()...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

// ListForClient returns a client's non-draft, non-removed invoices for the portal.
func (r *Repository) ListForClient(ctx context.Context, ownerID, clientID int64) ([]Invoice, error) {
	cond := shared.NewConditions(shared.Scope{OwnerID: ownerID}, "i").Add("i.client_id = %s", clientID).Raw("i.status <> 'draft'")
	rows, err := r.pool.Query(ctx, selectFrom("invoices")+cond.Where()+` ORDER BY i.date DESC, i.id DESC`, cond.Args()...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Update writes the editable fields and appends an audit entry.
func (r *Repository) Update(ctx context.Context, scope shared.Scope, inv Invoice, entry shared.AuditEntry) (Invoice, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", inv.ID)
	set := fmt.Sprintf(`client_id = %s, date = %s, expired_date = %s, year = %s, items = %s, currency = %s,
		sub_total = %s, tax_rate = %s, tax_total = %s, discount = %s, credit = %s, total = %s,
		status = %s, payment_status = %s, notes = %s, audit_log = audit_log || %s::jsonb, updated_at = NOW()`,
		cond.Bind(inv.ClientID), cond.Bind(inv.Date), cond.Bind(inv.ExpiredDate), cond.Bind(inv.Year),
		cond.Bind(inv.Items), cond.Bind(inv.Currency), cond.Bind(inv.SubTotal), cond.Bind(inv.TaxRate),
		cond.Bind(inv.TaxTotal), cond.Bind(inv.Discount), cond.Bind(inv.Credit), cond.Bind(inv.Total),
		cond.Bind(inv.Status), cond.Bind(inv.PaymentStatus), cond.Bind(inv.Notes), cond.Bind([]shared.AuditEntry{entry}))
	return scanInvoice(r.pool.QueryRow(ctx, `WITH u AS (UPDATE invoices SET `+set+` `+cond.Where()+` RETURNING *)`+selectFrom("u"), cond.Args()...))
}

// SoftDelete flags the invoice removed.
func (r *Repository) SoftDelete(ctx context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) error {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	audit := cond.Bind([]shared.AuditEntry{entry})
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET removed = TRUE, audit_log = audit_log || `+audit+`::jsonb, updated_at = NOW() `+cond.Where(), cond.Args()...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition implements RepositoryPort.
func (r *Repository) Transition(ctx context.Context, scope shared.Scope, id int64, from []Status, to Status, entry shared.AuditEntry) (Invoice, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}
	cond.Add("status = ANY(%s)", statuses)
	set := fmt.Sprintf("status = %s, audit_log = audit_log || %s::jsonb, updated_at = NOW()",
		cond.Bind(to), cond.Bind([]shared.AuditEntry{entry}))
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `WITH u AS (UPDATE invoices SET `+set+` `+cond.Where()+` RETURNING *)`+selectFrom("u"), cond.Args()...))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, scope, id); getErr == nil {
			return Invoice{}, ErrInvalidTransition
		}
	}
	return inv, err
}

// RecordPayment implements RepositoryPort. Columns on the right-hand side of
// SET refer to the pre-update row, so the status derivation sees the new total paid.
func (r *Repository) RecordPayment(ctx context.Context, scope shared.Scope, id int64, amount decimal.Decimal, entry shared.AuditEntry) (Invoice, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	amt := cond.Bind(amount)
	audit := cond.Bind([]shared.AuditEntry{entry})
	query := `WITH u AS (
		UPDATE invoices SET
			amount_paid = amount_paid + ` + amt + `::numeric,
			payment_status = CASE WHEN amount_paid + ` + amt + `::numeric >= total THEN 'paid' ELSE 'partially' END,
			status = CASE WHEN amount_paid + ` + amt + `::numeric >= total THEN 'paid' ELSE status END,
			audit_log = audit_log || ` + audit + `::jsonb,
			updated_at = NOW()
		` + cond.Where() + `
		RETURNING *)` + selectFrom("u")
	return scanInvoice(r.pool.QueryRow(ctx, query, cond.Args()...))
}

// SweepOverdue flags pending and sent invoices whose due date has passed.
// Invoices with nothing left to pay are skipped.
func (r *Repository) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	entry := []shared.AuditEntry{{Action: "overdue", At: now.UTC()}}
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = 'overdue', audit_log = audit_log || $2::jsonb, updated_at = NOW()
		WHERE status IN ('pending', 'sent') AND payment_status <> 'paid' AND NOT removed AND expired_date < $1`, now.UTC(), entry)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ RepositoryPort = (*Repository)(nil)
