package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

var (
	// ErrNotFound indicates the client does not exist for the owner.
	ErrNotFound = fmt.Errorf("client: %w", httpx.ErrNotFound)
	// ErrEmailTaken indicates another active client uses the email.
	ErrEmailTaken = fmt.Errorf("client email already exists: %w", httpx.ErrDuplicate)
)

// RepositoryPort abstracts client persistence.
type RepositoryPort interface {
	Create(ctx context.Context, client Client) (Client, error)
	Get(ctx context.Context, scope shared.Scope, id int64) (Client, error)
	List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Client, int, error)
	Update(ctx context.Context, scope shared.Scope, client Client) (Client, error)
	SoftDelete(ctx context.Context, scope shared.Scope, id int64) error
	FindByPortalToken(ctx context.Context, token uuid.UUID) (Client, error)
}

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, email, phone, address, status, portal_token, removed, created_by, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Status, &c.PortalToken,
		&c.Removed, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

// Create inserts a client.
func (r *Repository) Create(ctx context.Context, client Client) (Client, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone, address, status, portal_token, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+clientColumns,
		client.Name, client.Email, client.Phone, client.Address, client.Status, client.PortalToken, client.CreatedBy)
	created, err := scanClient(row)
	if db.IsUniqueViolation(err) {
		return Client{}, ErrEmailTaken
	}
	return created, err
}

// Get loads a client within scope.
func (r *Repository) Get(ctx context.Context, scope shared.Scope, id int64) (Client, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients `+cond.Where(), cond.Args()...))
}

// List returns a page of clients and the total count.
func (r *Repository) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Client, int, error) {
	params := filter.Normalize()
	cond := shared.NewConditions(scope, "")
	if filter.Status != "" {
		cond.Add("status = %s", filter.Status)
	}
	if params.Search != "" {
		cond.Search(params.Search, "name", "email", "phone")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients `+cond.Where(), cond.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := cond.Where()
	limit := cond.Bind(params.PerPage)
	offset := cond.Bind(params.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM clients %s ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %s`,
		clientColumns, where, limit, offset), cond.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Update overwrites mutable fields.
func (r *Repository) Update(ctx context.Context, scope shared.Scope, client Client) (Client, error) {
	cond := shared.NewConditions(scope, "").Add("id = %s", client.ID)
	set := fmt.Sprintf("name = %s, email = %s, phone = %s, address = %s, status = %s, updated_at = NOW()",
		cond.Bind(client.Name), cond.Bind(client.Email), cond.Bind(client.Phone), cond.Bind(client.Address), cond.Bind(client.Status))
	row := r.pool.QueryRow(ctx, `UPDATE clients SET `+set+` `+cond.Where()+` RETURNING `+clientColumns, cond.Args()...)
	updated, err := scanClient(row)
	if db.IsUniqueViolation(err) {
		return Client{}, ErrEmailTaken
	}
	return updated, err
}

// SoftDelete flags the client removed.
func (r *Repository) SoftDelete(ctx context.Context, scope shared.Scope, id int64) error {
	cond := shared.NewConditions(scope, "").Add("id = %s", id)
	tag, err := r.pool.Exec(ctx, `UPDATE clients SET removed = TRUE, updated_at = NOW() `+cond.Where(), cond.Args()...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByPortalToken resolves an active client for the public portal.
func (r *Repository) FindByPortalToken(ctx context.Context, token uuid.UUID) (Client, error) {
	return scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE portal_token = $1 AND NOT removed`, token))
}

var _ RepositoryPort = (*Repository)(nil)
