package expenses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// ErrNotFound indicates the expense does not exist for the owner.
var ErrNotFound = fmt.Errorf("expense: %w", httpx.ErrNotFound)

// RepositoryPort abstracts expense persistence.
type RepositoryPort interface {
	Create(ctx context.Context, expense Expense) (Expense, error)
	Get(ctx context.Context, scope shared.Scope, id int64) (Expense, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Expense, int, error)
	Update(ctx context.Context, scope shared.Scope, expense Expense) (Expense, error)
	SoftDelete(ctx context.Context, scope shared.Scope, id int64) error
}

// Repository provides PostgreSQL backed persistence for expenses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const expenseColumns = `id, description, amount, category, date, receipt_ref, removed, created_by, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Description, &e.Amount, &e.Category, &e.Date, &e.ReceiptRef, &e.Removed, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	return e, err
}

// Create inserts an expense.
func (r *Repository) Create(ctx context.Context, e Expense) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `
		INSERT INTO expenses (description, amount, category, date, receipt_ref, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+expenseColumns,
		e.Description, e.Amount, e.Category, e.Date, e.ReceiptRef, e.CreatedBy))
}

// Get loads an expense within scope.
func (r *Repository) Get(ctx context.Context, scope shared.Scope, id int64) (Expense, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	return scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses `+cond.Where(), cond.Args()...))
}

// List returns a page of expenses, newest first.
func (r *Repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Expense, int, error) {
	params := filter.Normalize()
	cond := shared.NewConditions(scope, "")
	if filter.Category != "" {
		cond.Add("category = %s", filter.Category)
	}
	if filter.From != nil {
		cond.Add("date >= %s", *filter.From)
	}
	if filter.To != nil {
		cond.Add("date < %s", *filter.To)
	}
	if params.Search != "" {
		cond.Search(params.Search, "description")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses `+cond.Where(), cond.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	where := cond.Where()
	limit, offset := cond.Bind(params.PerPage), cond.Bind(params.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM expenses %s ORDER BY date DESC, id DESC LIMIT %s OFFSET %s`,
		expenseColumns, where, limit, offset), cond.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Update overwrites mutable fields.
func (r *Repository) Update(ctx context.Context, scope shared.Scope, e Expense) (Expense, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", e.ID)
	set := fmt.Sprintf("description = %s, amount = %s, category = %s, date = %s, receipt_ref = %s, updated_at = NOW()",
		cond.Bind(e.Description), cond.Bind(e.Amount), cond.Bind(e.Category), cond.Bind(e.Date), cond.Bind(e.ReceiptRef))
	return scanExpense(r.pool.QueryRow(ctx, `UPDATE expenses SET `+set+` `+cond.Where()+` RETURNING `+expenseColumns, cond.Args()...))
}

// SoftDelete flags the expense removed.
func (r *Repository) SoftDelete(ctx context.Context, scope shared.Scope, id int64) error {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	tag, err := r.pool.Exec(ctx, `UPDATE expenses SET removed = TRUE, updated_at = NOW() `+cond.Where(), cond.Args()...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
