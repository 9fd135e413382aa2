package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Service reads and writes per-user settings.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService constructs a settings service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Get returns the caller's settings, falling back to defaults.
func (s *Service) Get(ctx context.Context, caller shared.Identity) (Settings, error) {
	if err := caller.Require(); err != nil {
		return Settings{}, err
	}
	return s.ForOwner(ctx, caller.UserID)
}

// ForOwner returns settings for an owner id. Used by document services.
func (s *Service) ForOwner(ctx context.Context, ownerID int64) (Settings, error) {
	stored, ok, err := s.repo.Get(ctx, ownerID)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return Defaults(ownerID), nil
	}
	return stored, nil
}

// Update saves the caller's settings.
func (s *Service) Update(ctx context.Context, caller shared.Identity, input Input) (Settings, error) {
	if err := caller.Require(); err != nil {
		return Settings{}, err
	}
	input.CompanyEmail = strings.TrimSpace(input.CompanyEmail)
	if err := s.validate.Struct(input); err != nil {
		return Settings{}, err
	}
	currency, err := money.NormalizeCurrency(input.DefaultCurrency, money.DefaultCurrency)
	if err != nil {
		return Settings{}, err
	}
	if input.DefaultTaxRate.IsNegative() || input.DefaultTaxRate.GreaterThan(money.Hundred) {
		return Settings{}, fmt.Errorf("%w: default tax rate must be between 0 and 100", httpx.ErrValidation)
	}
	return s.repo.Upsert(ctx, Settings{
		UserID:             caller.UserID,
		CompanyName:        strings.TrimSpace(input.CompanyName),
		CompanyAddress:     input.CompanyAddress,
		CompanyEmail:       input.CompanyEmail,
		CompanyPhone:       input.CompanyPhone,
		TaxNumber:          input.TaxNumber,
		DefaultCurrency:    currency,
		DefaultTaxRate:     money.Round2(input.DefaultTaxRate),
		PaymentTermsDays:   input.PaymentTermsDays,
		DefaultNotes:       input.DefaultNotes,
		InvoiceStartNumber: input.InvoiceStartNumber,
		QuoteStartNumber:   input.QuoteStartNumber,
	})
}
