package settings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
)

// DefaultPaymentTermsDays applies when the owner has not saved settings.
const DefaultPaymentTermsDays = 30

// Settings are per-user company details and document defaults.
type Settings struct {
	UserID             int64           `json:"userId"`
	CompanyName        string          `json:"companyName"`
	CompanyAddress     string          `json:"companyAddress"`
	CompanyEmail       string          `json:"companyEmail"`
	CompanyPhone       string          `json:"companyPhone"`
	TaxNumber          string          `json:"taxNumber"`
	DefaultCurrency    string          `json:"defaultCurrency"`
	DefaultTaxRate     decimal.Decimal `json:"defaultTaxRate"`
	PaymentTermsDays   int             `json:"paymentTermsDays"`
	DefaultNotes       string          `json:"defaultNotes"`
	InvoiceStartNumber *int64          `json:"invoiceStartNumber,omitempty"`
	QuoteStartNumber   *int64          `json:"quoteStartNumber,omitempty"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Defaults returns the settings used before the owner saves any.
func Defaults(userID int64) Settings {
	return Settings{
		UserID:           userID,
		DefaultCurrency:  money.DefaultCurrency,
		DefaultTaxRate:   decimal.Zero,
		PaymentTermsDays: DefaultPaymentTermsDays,
	}
}

// Input is the update payload.
type Input struct {
	CompanyName        string          `json:"companyName" validate:"max=200"`
	CompanyAddress     string          `json:"companyAddress" validate:"max=500"`
	CompanyEmail       string          `json:"companyEmail" validate:"omitempty,email"`
	CompanyPhone       string          `json:"companyPhone" validate:"max=50"`
	TaxNumber          string          `json:"taxNumber" validate:"max=64"`
	DefaultCurrency    string          `json:"defaultCurrency"`
	DefaultTaxRate     decimal.Decimal `json:"defaultTaxRate"`
	PaymentTermsDays   int             `json:"paymentTermsDays" validate:"gte=0,lte=365"`
	DefaultNotes       string          `json:"defaultNotes" validate:"max=2000"`
	InvoiceStartNumber *int64          `json:"invoiceStartNumber" validate:"omitempty,gt=0"`
	QuoteStartNumber   *int64          `json:"quoteStartNumber" validate:"omitempty,gt=0"`
}
