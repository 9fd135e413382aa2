package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Repository stores counters in document_counters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Increment implements RepositoryPort.
func (r *Repository) Increment(ctx context.Context, ownerID int64, kind Kind) (int64, bool, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `
		UPDATE document_counters SET last_value = last_value + 1, updated_at = NOW()
		WHERE owner_id = $1 AND kind = $2
		RETURNING last_value`, ownerID, string(kind)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// Seed implements RepositoryPort.
func (r *Repository) Seed(ctx context.Context, ownerID int64, kind Kind) (int64, error) {
	table, startColumn := "invoices", "invoice_start_number"
	if kind == KindQuote {
		table, startColumn = "quotes", "quote_start_number"
	}
	// Removed documents keep their numbers.
	cond := shared.NewConditions(shared.Scope{OwnerID: ownerID}.WithRemoved(), "")
	var maxNumber pgtype.Int8
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT MAX(number) FROM %s %s`, table, cond.Where()), cond.Args()...).Scan(&maxNumber); err != nil {
		return 0, err
	}
	if maxNumber.Valid {
		return maxNumber.Int64 + 1, nil
	}
	var start pgtype.Int8
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM settings WHERE user_id = $1`, startColumn), ownerID).Scan(&start)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if start.Valid && start.Int64 > 0 {
		return start.Int64, nil
	}
	return 0, nil
}

// Initialize implements RepositoryPort.
func (r *Repository) Initialize(ctx context.Context, ownerID int64, kind Kind, seed int64) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_counters (owner_id, kind, last_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, kind) DO UPDATE SET last_value = document_counters.last_value + 1, updated_at = NOW()
		RETURNING last_value`, ownerID, string(kind), seed).Scan(&value)
	return value, err
}

var _ RepositoryPort = (*Repository)(nil)
