package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort abstracts settings persistence.
type RepositoryPort interface {
	// Get returns the owner's settings, or found=false when none are saved.
	Get(ctx context.Context, userID int64) (Settings, bool, error)
	Upsert(ctx context.Context, s Settings) (Settings, error)
}

// Repository provides PostgreSQL backed persistence for settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const settingsColumns = `user_id, company_name, company_address, company_email, company_phone, tax_number,
	default_currency, default_tax_rate, payment_terms_days, default_notes, invoice_start_number,
	quote_start_number, updated_at`

func scanSettings(row pgx.Row) (Settings, error) {
	var s Settings
	err := row.Scan(&s.UserID, &s.CompanyName, &s.CompanyAddress, &s.CompanyEmail, &s.CompanyPhone, &s.TaxNumber,
		&s.DefaultCurrency, &s.DefaultTaxRate, &s.PaymentTermsDays, &s.DefaultNotes, &s.InvoiceStartNumber,
		&s.QuoteStartNumber, &s.UpdatedAt)
	return s, err
}

// Get implements RepositoryPort.
func (r *Repository) Get(ctx context.Context, userID int64) (Settings, bool, error) {
	s, err := scanSettings(r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM settings WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, err
	}
	return s, true, nil
}

// Upsert implements RepositoryPort.
func (r *Repository) Upsert(ctx context.Context, s Settings) (Settings, error) {
	return scanSettings(r.pool.QueryRow(ctx, `
		INSERT INTO settings (user_id, company_name, company_address, company_email, company_phone, tax_number,
			default_currency, default_tax_rate, payment_terms_days, default_notes, invoice_start_number,
			quote_start_number, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			company_address = EXCLUDED.company_address,
			company_email = EXCLUDED.company_email,
			company_phone = EXCLUDED.company_phone,
			tax_number = EXCLUDED.tax_number,
			default_currency = EXCLUDED.default_currency,
			default_tax_rate = EXCLUDED.default_tax_rate,
			payment_terms_days = EXCLUDED.payment_terms_days,
			default_notes = EXCLUDED.default_notes,
			invoice_start_number = EXCLUDED.invoice_start_number,
			quote_start_number = EXCLUDED.quote_start_number,
			updated_at = NOW()
		RETURNING `+settingsColumns,
		s.UserID, s.CompanyName, s.CompanyAddress, s.CompanyEmail, s.CompanyPhone, s.TaxNumber,
		s.DefaultCurrency, s.DefaultTaxRate, s.PaymentTermsDays, s.DefaultNotes, s.InvoiceStartNumber,
		s.QuoteStartNumber))
}

var _ RepositoryPort = (*Repository)(nil)
