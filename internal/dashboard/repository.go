package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// RepositoryPort lists the read-only aggregates a snapshot is built from.
type RepositoryPort interface {
	Revenue(ctx context.Context, ownerID int64) (decimal.Decimal, error)
	ExpenseTotal(ctx context.Context, ownerID int64) (decimal.Decimal, error)
	Outstanding(ctx context.Context, ownerID int64) (Outstanding, error)
	InvoiceCount(ctx context.Context, ownerID int64) (int, error)
	ActiveClients(ctx context.Context, ownerID int64) (int, error)
	RecentInvoices(ctx context.Context, ownerID int64, limit int) ([]RecentInvoice, error)
	MonthlyTotals(ctx context.Context, ownerID int64, from, to time.Time) ([]MonthTotal, error)
	OpenInvoices(ctx context.Context, ownerID int64) ([]OpenInvoice, error)
	TopClients(ctx context.Context, ownerID int64, limit int) ([]TopClient, error)

	SearchClients(ctx context.Context, ownerID int64, q string, limit int) ([]SearchHit, error)
	SearchInvoicesByNumber(ctx context.Context, ownerID, number int64, limit int) ([]SearchHit, error)
	SearchInvoicesByClient(ctx context.Context, ownerID int64, q string, limit int) ([]SearchHit, error)
	SearchProducts(ctx context.Context, ownerID int64, q string, limit int) ([]SearchHit, error)
}

// Repository runs dashboard aggregates on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// owned scopes aggregates to the owner's live rows.
func owned(ownerID int64, alias string) *shared.Conditions {
	return shared.NewConditions(shared.Scope{OwnerID: ownerID}, alias)
}

// Revenue sums totals of every issued invoice.
func (r *Repository) Revenue(ctx context.Context, ownerID int64) (decimal.Decimal, error) {
	cond := owned(ownerID, "").Raw("status <> 'draft'")
	var v decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM invoices `+cond.Where(), cond.Args()...).Scan(&v)
	return v, err
}

// ExpenseTotal sums every expense.
func (r *Repository) ExpenseTotal(ctx context.Context, ownerID int64) (decimal.Decimal, error) {
	cond := owned(ownerID, "")
	var v decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses `+cond.Where(), cond.Args()...).Scan(&v)
	return v, err
}

// Outstanding counts issued, unpaid invoices and the balance left on them.
func (r *Repository) Outstanding(ctx context.Context, ownerID int64) (Outstanding, error) {
	cond := owned(ownerID, "").Raw("status NOT IN ('draft', 'paid')")
	var o Outstanding
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(GREATEST(total - amount_paid, 0)), 0) FROM invoices `+cond.Where(),
		cond.Args()...).Scan(&o.Count, &o.Amount)
	return o, err
}

// InvoiceCount counts the owner's invoices.
func (r *Repository) InvoiceCount(ctx context.Context, ownerID int64) (int, error) {
	cond := owned(ownerID, "")
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+cond.Where(), cond.Args()...).Scan(&n)
	return n, err
}

// ActiveClients counts active clients.
func (r *Repository) ActiveClients(ctx context.Context, ownerID int64) (int, error) {
	cond := owned(ownerID, "").Raw("status = 'active'")
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients `+cond.Where(), cond.Args()...).Scan(&n)
	return n, err
}

// RecentInvoices returns the latest invoices by date.
func (r *Repository) RecentInvoices(ctx context.Context, ownerID int64, limit int) ([]RecentInvoice, error) {
	cond := owned(ownerID, "i")
	where := cond.Where()
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.number, c.name, i.date, i.total, i.currency, i.status
		FROM invoices i JOIN clients c ON c.id = i.client_id `+where+`
		ORDER BY i.date DESC, i.id DESC LIMIT `+cond.Bind(limit), cond.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RecentInvoice, error) {
		var ri RecentInvoice
		err := row.Scan(&ri.ID, &ri.Number, &ri.ClientName, &ri.Date, &ri.Total, &ri.Currency, &ri.Status)
		return ri, err
	})
}

// MonthlyTotals returns income and expense per calendar month in [from, to).
func (r *Repository) MonthlyTotals(ctx context.Context, ownerID int64, from, to time.Time) ([]MonthTotal, error) {
	income := owned(ownerID, "").Raw("status <> 'draft'").Add("date >= %s", from).Add("date < %s", to)
	incomeRows, err := r.monthly(ctx, `SELECT date_trunc('month', date AT TIME ZONE 'UTC'), SUM(total) FROM invoices `+
		income.Where()+` GROUP BY 1`, income.Args())
	if err != nil {
		return nil, err
	}
	expense := owned(ownerID, "").Add("date >= %s", from).Add("date < %s", to)
	expenseRows, err := r.monthly(ctx, `SELECT date_trunc('month', date AT TIME ZONE 'UTC'), SUM(amount) FROM expenses `+
		expense.Where()+` GROUP BY 1`, expense.Args())
	if err != nil {
		return nil, err
	}
	byMonth := make(map[time.Time]*MonthTotal)
	at := func(month time.Time) *MonthTotal {
		month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
		if byMonth[month] == nil {
			byMonth[month] = &MonthTotal{Month: month, Income: decimal.Zero, Expense: decimal.Zero}
		}
		return byMonth[month]
	}
	for month, amount := range incomeRows {
		at(month).Income = amount
	}
	for month, amount := range expenseRows {
		at(month).Expense = amount
	}
	out := make([]MonthTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (r *Repository) monthly(ctx context.Context, query string, args []any) (map[time.Time]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[time.Time]decimal.Decimal)
	for rows.Next() {
		var month time.Time
		var amount decimal.Decimal
		if err := rows.Scan(&month, &amount); err != nil {
			return nil, err
		}
		out[month] = amount
	}
	return out, rows.Err()
}

// OpenInvoices lists issued, unpaid invoices with their remaining balance.
func (r *Repository) OpenInvoices(ctx context.Context, ownerID int64) ([]OpenInvoice, error) {
	cond := owned(ownerID, "").Raw("status NOT IN ('draft', 'paid')")
	rows, err := r.pool.Query(ctx, `SELECT expired_date, GREATEST(total - amount_paid, 0) FROM invoices `+cond.Where(), cond.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OpenInvoice, error) {
		var oi OpenInvoice
		err := row.Scan(&oi.ExpiredDate, &oi.Outstanding)
		return oi, err
	})
}

// TopClients ranks clients by revenue from issued invoices.
func (r *Repository) TopClients(ctx context.Context, ownerID int64, limit int) ([]TopClient, error) {
	cond := owned(ownerID, "i").Raw("i.status <> 'draft'")
	where := cond.Where()
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, COALESCE(SUM(i.total), 0),
			COALESCE(SUM(GREATEST(i.total - i.amount_paid, 0)) FILTER (WHERE i.status <> 'paid'), 0)
		FROM invoices i JOIN clients c ON c.id = i.client_id `+where+`
		GROUP BY c.id, c.name
		ORDER BY 3 DESC, c.id
		LIMIT `+cond.Bind(limit), cond.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TopClient, error) {
		var tc TopClient
		err := row.Scan(&tc.ClientID, &tc.Name, &tc.Revenue, &tc.Outstanding)
		return tc, err
	})
}

// hits runs a typeahead query. order is appended after the WHERE clause,
// followed by the limit.
func (r *Repository) hits(ctx context.Context, sel string, cond *shared.Conditions, order string, limit int) ([]SearchHit, error) {
	where := cond.Where()
	rows, err := r.pool.Query(ctx, sel+" "+where+" ORDER BY "+order+" LIMIT "+cond.Bind(limit), cond.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchHit, error) {
		var h SearchHit
		err := row.Scan(&h.ID, &h.Label, &h.Subtitle)
		return h, err
	})
}

// SearchClients matches name, email or phone.
func (r *Repository) SearchClients(ctx context.Context, ownerID int64, q string, limit int) ([]SearchHit, error) {
	cond := owned(ownerID, "").Search(q, "name", "email", "phone")
	return r.hits(ctx, `SELECT id, name, email FROM clients`, cond, "name", limit)
}

// SearchInvoicesByNumber matches the invoice number exactly.
func (r *Repository) SearchInvoicesByNumber(ctx context.Context, ownerID, number int64, limit int) ([]SearchHit, error) {
	cond := owned(ownerID, "i").Add("i.number = %s", number)
	return r.hits(ctx, `SELECT i.id, '#' || i.number::text, c.name FROM invoices i JOIN clients c ON c.id = i.client_id`,
		cond, "i.id DESC", limit)
}

// SearchInvoicesByClient matches the billed client's name.
func (r *Repository) SearchInvoicesByClient(ctx context.Context, ownerID int64, q string, limit int) ([]SearchHit, error) {
	cond := owned(ownerID, "i").Search(q, "c.name")
	return r.hits(ctx, `SELECT i.id, '#' || i.number::text, c.name FROM invoices i JOIN clients c ON c.id = i.client_id`,
		cond, "i.date DESC, i.id DESC", limit)
}

// SearchProducts matches name or SKU.
func (r *Repository) SearchProducts(ctx context.Context, ownerID int64, q string, limit int) ([]SearchHit, error) {
	cond := owned(ownerID, "").Search(q, "name", "sku")
	return r.hits(ctx, `SELECT id, name, sku FROM products`, cond, "name", limit)
}

var _ RepositoryPort = (*Repository)(nil)
