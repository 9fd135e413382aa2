package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// RepositoryPort abstracts quote persistence.
type RepositoryPort interface {
	Create(ctx context.Context, q Quote) (Quote, error)
	Get(ctx context.Context, scope shared.Scope, id int64) (Quote, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Quote, int, error)
	// Update writes editable fields while the quote is draft or sent.
	Update(ctx context.Context, scope shared.Scope, q Quote, entry shared.AuditEntry) (Quote, error)
	SoftDelete(ctx context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) error
	Transition(ctx context.Context, scope shared.Scope, id int64, from []Status, to Status, entry shared.AuditEntry) (Quote, error)
	// Claim marks the quote converted unless it already is.
	Claim(ctx context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) (Quote, error)
	// Unclaim restores a claimed quote that never received an invoice.
	Unclaim(ctx context.Context, scope shared.Scope, id int64, restore Status, entry shared.AuditEntry) error
	LinkInvoice(ctx context.Context, scope shared.Scope, id, invoiceID int64) (Quote, error)
}

// Repository provides PostgreSQL backed persistence for quotes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var quoteColumns = []string{"id", "number", "year", "client_id", "date", "expired_date", "items", "currency",
	"sub_total", "tax_rate", "tax_total", "discount", "credit", "total", "status", "notes",
	"converted_invoice_id", "audit_log", "removed", "created_by", "created_at", "updated_at"}

func selectFrom(source string) string {
	cols := make([]string, len(quoteColumns))
	for i, c := range quoteColumns {
		cols[i] = "q." + c
	}
	return `SELECT ` + strings.Join(cols, ", ") + `, c.name, c.email FROM ` + source + ` q JOIN clients c ON c.id = q.client_id `
}

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	var client invoices.ClientSummary
	err := row.Scan(&q.ID, &q.Number, &q.Year, &q.ClientID, &q.Date, &q.ExpiredDate, &q.Items, &q.Currency,
		&q.SubTotal, &q.TaxRate, &q.TaxTotal, &q.Discount, &q.Credit, &q.Total, &q.Status, &q.Notes,
		&q.ConvertedInvoiceID, &q.AuditLog, &q.Removed, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
		&client.Name, &client.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, err
	}
	client.ID = q.ClientID
	q.Client = &client
	return q, nil
}

// Create inserts a quote.
func (r *Repository) Create(ctx context.Context, q Quote) (Quote, error) {
	row := r.pool.QueryRow(ctx, `
		WITH q AS (
			INSERT INTO quotes (number, year, client_id, date, expired_date, items, currency, sub_total,
				tax_rate, tax_total, discount, credit, total, status, notes, audit_log, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING *
		)`+selectFrom("q"),
		q.Number, q.Year, q.ClientID, q.Date, q.ExpiredDate, q.Items, q.Currency, q.SubTotal,
		q.TaxRate, q.TaxTotal, q.Discount, q.Credit, q.Total, q.Status, q.Notes, q.AuditLog, q.CreatedBy)
	created, err := scanQuote(row)
	if db.IsUniqueViolation(err) {
		return Quote{}, ErrDuplicateNumber
	}
	return created, err
}

// Get loads a quote within scope.
func (r *Repository) Get(ctx context.Context, scope shared.Scope, id int64) (Quote, error) {
	cond := shared.NewConditions(scope, "q").Add("q.id = %s", id)
	return scanQuote(r.pool.QueryRow(ctx, selectFrom("quotes")+cond.Where(), cond.Args()...))
}

// List returns a page of quotes, newest first.
func (r *Repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Quote, int, error) {
	params := filter.Normalize()
	cond := shared.NewConditions(scope, "q")
	if filter.Status != "" {
		cond.Add("q.status = %s", filter.Status)
	}
	if filter.ClientID > 0 {
		cond.Add("q.client_id = %s", filter.ClientID)
	}
	if params.Search != "" {
		cond.Search(params.Search, "c.name", "q.number::text")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes q JOIN clients c ON c.id = q.client_id `+cond.Where(), cond.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	where := cond.Where()
	limit, offset := cond.Bind(params.PerPage), cond.Bind(params.Offset())
	rows, err := r.pool.Query(ctx, selectFrom("quotes")+where+` ORDER BY q.date DESC, q.id DESC LIMIT `+limit+` OFFSET `+offset, cond.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// update runs a conditional UPDATE and tells a missing row apart from a guard miss.
func (r *Repository) update(ctx context.Context, scope shared.Scope, id int64, cond *shared.Conditions, set string, guardErr error) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `WITH u AS (UPDATE quotes SET `+set+` `+cond.Where()+` RETURNING *)`+selectFrom("u"), cond.Args()...))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, scope, id); getErr == nil {
			return Quote{}, guardErr
		}
	}
	return q, err
}

// Update implements RepositoryPort.
func (r *Repository) Update(ctx context.Context, scope shared.Scope, q Quote, entry shared.AuditEntry) (Quote, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", q.ID).Raw("status IN ('draft', 'sent')")
	set := fmt.Sprintf(`client_id = %s, date = %s, expired_date = %s, year = %s, items = %s, currency = %s,
		sub_total = %s, tax_rate = %s, tax_total = %s, discount = %s, credit = %s, total = %s, notes = %s,
		audit_log = audit_log || %s::jsonb, updated_at = NOW()`,
		cond.Bind(q.ClientID), cond.Bind(q.Date), cond.Bind(q.ExpiredDate), cond.Bind(q.Year), cond.Bind(q.Items),
		cond.Bind(q.Currency), cond.Bind(q.SubTotal), cond.Bind(q.TaxRate), cond.Bind(q.TaxTotal),
		cond.Bind(q.Discount), cond.Bind(q.Credit), cond.Bind(q.Total), cond.Bind(q.Notes),
		cond.Bind([]shared.AuditEntry{entry}))
	return r.update(ctx, scope, q.ID, cond, set, ErrNotEditable)
}

// SoftDelete flags the quote removed.
func (r *Repository) SoftDelete(ctx context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) error {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	audit := cond.Bind([]shared.AuditEntry{entry})
	tag, err := r.pool.Exec(ctx, `UPDATE quotes SET removed = TRUE, audit_log = audit_log || `+audit+`::jsonb, updated_at = NOW() `+cond.Where(), cond.Args()...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition implements RepositoryPort.
func (r *Repository) Transition(ctx context.Context, scope shared.Scope, id int64, from []Status, to Status, entry shared.AuditEntry) (Quote, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}
	cond := shared.NewConditions(scope, "").Add("id = %s", id).Add("status = ANY(%s)", statuses)
	set := fmt.Sprintf("status = %s, audit_log = audit_log || %s::jsonb, updated_at = NOW()",
		cond.Bind(to), cond.Bind([]shared.AuditEntry{entry}))
	return r.update(ctx, scope, id, cond, set, ErrInvalidTransition)
}

// Claim implements RepositoryPort.
func (r *Repository) Claim(ctx context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) (Quote, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", id).Raw("status <> 'converted'")
	set := fmt.Sprintf("status = 'converted', audit_log = audit_log || %s::jsonb, updated_at = NOW()",
		cond.Bind([]shared.AuditEntry{entry}))
	return r.update(ctx, scope, id, cond, set, ErrAlreadyConverted)
}

// Unclaim implements RepositoryPort.
func (r *Repository) Unclaim(ctx context.Context, scope shared.Scope, id int64, restore Status, entry shared.AuditEntry) error {
	cond := shared.NewConditions(scope, "").Add("id = %s", id).Raw("status = 'converted' AND converted_invoice_id IS NULL")
	set := fmt.Sprintf("status = %s, audit_log = audit_log || %s::jsonb, updated_at = NOW()",
		cond.Bind(restore), cond.Bind([]shared.AuditEntry{entry}))
	_, err := r.pool.Exec(ctx, `UPDATE quotes SET `+set+` `+cond.Where(), cond.Args()...)
	return err
}

// LinkInvoice records the invoice produced by conversion.
func (r *Repository) LinkInvoice(ctx context.Context, scope shared.Scope, id, invoiceID int64) (Quote, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	set := fmt.Sprintf("converted_invoice_id = %s, updated_at = NOW()", cond.Bind(invoiceID))
	return r.update(ctx, scope, id, cond, set, ErrNotFound)
}

var _ RepositoryPort = (*Repository)(nil)
