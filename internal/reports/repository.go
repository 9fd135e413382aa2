package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// RepositoryPort lists the aggregates reports are built from.
type RepositoryPort interface {
	MonthlyRevenue(ctx context.Context, ownerID int64, year int) ([]MonthAmount, error)
	MonthlyExpenses(ctx context.Context, ownerID int64, year int) ([]MonthAmount, error)
	ExpensesByCategory(ctx context.Context, ownerID int64, from, to time.Time) ([]CategoryTotal, error)
	MonthlyTax(ctx context.Context, ownerID int64, year int) ([]TaxMonth, error)
}

// Repository runs report aggregates on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func yearBounds(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}

// inRange scopes rows to the owner's live records dated in [from, to).
func inRange(ownerID int64, from, to time.Time) *shared.Conditions {
	return shared.NewConditions(shared.Scope{OwnerID: ownerID}, "").Add("date >= %s", from).Add("date < %s", to)
}

func (r *Repository) monthly(ctx context.Context, sel string, cond *shared.Conditions) ([]MonthAmount, error) {
	rows, err := r.pool.Query(ctx, sel+" "+cond.Where()+" GROUP BY 1 ORDER BY 1", cond.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MonthAmount, error) {
		var m MonthAmount
		err := row.Scan(&m.Month, &m.Amount)
		return m, err
	})
}

// MonthlyRevenue sums issued invoice totals per month.
func (r *Repository) MonthlyRevenue(ctx context.Context, ownerID int64, year int) ([]MonthAmount, error) {
	from, to := yearBounds(year)
	cond := inRange(ownerID, from, to).Raw("status <> 'draft'")
	return r.monthly(ctx, `SELECT EXTRACT(MONTH FROM date AT TIME ZONE 'UTC')::int, SUM(total) FROM invoices`, cond)
}

// MonthlyExpenses sums expenses per month.
func (r *Repository) MonthlyExpenses(ctx context.Context, ownerID int64, year int) ([]MonthAmount, error) {
	from, to := yearBounds(year)
	return r.monthly(ctx, `SELECT EXTRACT(MONTH FROM date AT TIME ZONE 'UTC')::int, SUM(amount) FROM expenses`, inRange(ownerID, from, to))
}

// ExpensesByCategory sums expenses per category in [from, to).
func (r *Repository) ExpensesByCategory(ctx context.Context, ownerID int64, from, to time.Time) ([]CategoryTotal, error) {
	cond := inRange(ownerID, from, to)
	rows, err := r.pool.Query(ctx, `
		SELECT category, SUM(amount), COUNT(*)
		FROM expenses `+cond.Where()+`
		GROUP BY category ORDER BY 2 DESC, category`, cond.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CategoryTotal, error) {
		var c CategoryTotal
		err := row.Scan(&c.Category, &c.Total, &c.Count)
		return c, err
	})
}

// MonthlyTax sums the taxable base and tax of issued invoices per month.
func (r *Repository) MonthlyTax(ctx context.Context, ownerID int64, year int) ([]TaxMonth, error) {
	from, to := yearBounds(year)
	cond := inRange(ownerID, from, to).Raw("status <> 'draft'")
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(MONTH FROM date AT TIME ZONE 'UTC')::int, SUM(sub_total - discount), SUM(tax_total)
		FROM invoices `+cond.Where()+`
		GROUP BY 1 ORDER BY 1`, cond.Args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TaxMonth, error) {
		var m TaxMonth
		err := row.Scan(&m.Month, &m.Taxable, &m.Tax)
		return m, err
	})
}

var _ RepositoryPort = (*Repository)(nil)
