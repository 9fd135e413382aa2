package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// ErrNotFound indicates the product does not exist for the owner.
var ErrNotFound = fmt.Errorf("product: %w", httpx.ErrNotFound)

// RepositoryPort abstracts product persistence.
type RepositoryPort interface {
	Create(ctx context.Context, product Product) (Product, error)
	Get(ctx context.Context, scope shared.Scope, id int64) (Product, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Product, int, error)
	Update(ctx context.Context, scope shared.Scope, product Product) (Product, error)
	SoftDelete(ctx context.Context, scope shared.Scope, id int64) error
}

// Repository provides PostgreSQL backed persistence for products.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, sku, description, price, stock, removed, created_by, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Stock, &p.Removed, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, product Product) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `
		INSERT INTO products (name, sku, description, price, stock, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		product.Name, product.SKU, product.Description, product.Price, product.Stock, product.CreatedBy))
}

// Get loads a product within scope.
func (r *Repository) Get(ctx context.Context, scope shared.Scope, id int64) (Product, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products `+cond.Where(), cond.Args()...))
}

// List returns a page of products and the total count.
func (r *Repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Product, int, error) {
	params := filter.Normalize()
	cond := shared.NewConditions(scope, "")
	if params.Search != "" {
		cond.Search(params.Search, "name", "sku")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products `+cond.Where(), cond.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	where := cond.Where()
	limit, offset := cond.Bind(params.PerPage), cond.Bind(params.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM products %s ORDER BY name, id LIMIT %s OFFSET %s`,
		productColumns, where, limit, offset), cond.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Update overwrites mutable fields, including the stock count.
func (r *Repository) Update(ctx context.Context, scope shared.Scope, product Product) (Product, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", product.ID)
	set := fmt.Sprintf("name = %s, sku = %s, description = %s, price = %s, stock = %s, updated_at = NOW()",
		cond.Bind(product.Name), cond.Bind(product.SKU), cond.Bind(product.Description), cond.Bind(product.Price), cond.Bind(product.Stock))
	return scanProduct(r.pool.QueryRow(ctx, `UPDATE products SET `+set+` `+cond.Where()+` RETURNING `+productColumns, cond.Args()...))
}

// SoftDelete flags the product removed.
func (r *Repository) SoftDelete(ctx context.Context, scope shared.Scope, id int64) error {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	tag, err := r.pool.Exec(ctx, `UPDATE products SET removed = TRUE, updated_at = NOW() `+cond.Where(), cond.Args()...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
