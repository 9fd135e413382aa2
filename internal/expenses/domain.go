package expenses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Category classifies an expense.
type Category string

const (
	CategoryOffice    Category = "office"
	CategoryTravel    Category = "travel"
	CategoryUtilities Category = "utilities"
	CategoryRent      Category = "rent"
	CategorySalaries  Category = "salaries"
	CategoryMarketing Category = "marketing"
	CategorySoftware  Category = "software"
	CategorySupplies  Category = "supplies"
	CategoryOther     Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryOffice, CategoryTravel, CategoryUtilities, CategoryRent, CategorySalaries,
	CategoryMarketing, CategorySoftware, CategorySupplies, CategoryOther,
}

// Expense is money spent by the business.
type Expense struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Date        time.Time       `json:"date"`
	ReceiptRef  *string         `json:"receiptRef,omitempty"`
	Removed     bool            `json:"removed"`
	CreatedBy   int64           `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Input is the create/update payload.
type Input struct {
	Description string          `json:"description" validate:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category" validate:"required,oneof=office travel utilities rent salaries marketing software supplies other"`
	Date        time.Time       `json:"date" validate:"required"`
	ReceiptRef  *string         `json:"receiptRef" validate:"omitempty,max=500"`
}

// ListFilter narrows an expense listing.
type ListFilter struct {
	shared.ListParams
	Category Category
	From     *time.Time
	To       *time.Time
}
