package invoices

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSent, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// PaymentStatus summarises how much of the total has been paid.
type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentPartially PaymentStatus = "partially"
	PaymentPaid      PaymentStatus = "paid"
)

var (
	// ErrNotFound indicates the invoice does not exist for the owner.
	ErrNotFound = fmt.Errorf("invoice: %w", httpx.ErrNotFound)
	// ErrInvalidTransition indicates the requested status change is not allowed from the current status.
	ErrInvalidTransition = fmt.Errorf("invoice status does not allow this action: %w", httpx.ErrConflict)
	// ErrAlreadyPaid indicates there is no outstanding balance.
	ErrAlreadyPaid = fmt.Errorf("invoice is already paid: %w", httpx.ErrConflict)
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = fmt.Errorf("%w: payment amount must be greater than 0", httpx.ErrValidation)
	// ErrDuplicateNumber indicates the number is already used by the owner.
	ErrDuplicateNumber = fmt.Errorf("invoice number already exists: %w", httpx.ErrDuplicate)
)

// Item is one invoice line. ProductID links the line to the catalogue for
// stock tracking; lines without it are matched to products by name.
type Item struct {
	ProductID   *int64          `json:"productId,omitempty"`
	ItemName    string          `json:"itemName"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

// ClientSummary is the client projection embedded in invoice reads.
type ClientSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Invoice is a bill issued to a client.
type Invoice struct {
	ID               int64               `json:"id"`
	PublicID         uuid.UUID           `json:"publicId"`
	Number           int64               `json:"number"`
	Year             int                 `json:"year"`
	ClientID         int64               `json:"clientId"`
	Client           *ClientSummary      `json:"client,omitempty"`
	Date             time.Time           `json:"date"`
	ExpiredDate      time.Time           `json:"expiredDate"`
	Items            []Item              `json:"items"`
	Currency         string              `json:"currency"`
	SubTotal         decimal.Decimal     `json:"subTotal"`
	TaxRate          decimal.Decimal     `json:"taxRate"`
	TaxTotal         decimal.Decimal     `json:"taxTotal"`
	Discount         decimal.Decimal     `json:"discount"`
	Credit           decimal.Decimal     `json:"credit"`
	Total            decimal.Decimal     `json:"total"`
	AmountPaid       decimal.Decimal     `json:"amountPaid"`
	Status           Status              `json:"status"`
	PaymentStatus    PaymentStatus       `json:"paymentStatus"`
	Notes            string              `json:"notes"`
	ConvertedQuoteID *int64              `json:"convertedQuoteId,omitempty"`
	AuditLog         []shared.AuditEntry `json:"auditLog"`
	Removed          bool                `json:"removed"`
	CreatedBy        int64               `json:"createdBy"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Outstanding returns total minus amount paid, floored at zero.
func (inv Invoice) Outstanding() decimal.Decimal {
	out := inv.Total.Sub(inv.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// ItemInput is a line as submitted by the client. Line totals are computed server-side.
type ItemInput struct {
	ProductID   *int64          `json:"productId"`
	ItemName    string          `json:"itemName" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=1000"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Input is the create/update payload.
type Input struct {
	ClientID    int64            `json:"clientId" validate:"required,gt=0"`
	Date        time.Time        `json:"date" validate:"required"`
	ExpiredDate *time.Time       `json:"expiredDate"`
	Items       []ItemInput      `json:"items" validate:"required,min=1,dive"`
	Currency    string           `json:"currency"`
	TaxRate     *decimal.Decimal `json:"taxRate"`
	Discount    decimal.Decimal  `json:"discount"`
	Credit      decimal.Decimal  `json:"credit"`
	Status      Status           `json:"status" validate:"omitempty,oneof=draft pending sent paid overdue"`
	Notes       *string          `json:"notes" validate:"omitempty,max=2000"`
}

// PaymentInput records money received against an invoice.
type PaymentInput struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note" validate:"max=500"`
}

// ListFilter narrows an invoice listing.
type ListFilter struct {
	shared.ListParams
	Status         Status
	PaymentStatus  PaymentStatus
	ClientID       int64
	IncludeRemoved bool
}

// QuoteSource carries a quote's commercial content into a new invoice. Totals
// are copied verbatim.
type QuoteSource struct {
	QuoteID  int64
	ClientID int64
	Items    []Item
	Currency string
	SubTotal decimal.Decimal
	TaxRate  decimal.Decimal
	TaxTotal decimal.Decimal
	Discount decimal.Decimal
	Credit   decimal.Decimal
	Total    decimal.Decimal
	Notes    string
}

// PublicView is the unauthenticated projection of an invoice.
type PublicView struct {
	PublicID      uuid.UUID       `json:"publicId"`
	Number        int64           `json:"number"`
	Year          int             `json:"year"`
	ClientName    string          `json:"clientName"`
	Date          time.Time       `json:"date"`
	ExpiredDate   time.Time       `json:"expiredDate"`
	Items         []Item          `json:"items"`
	Currency      string          `json:"currency"`
	SubTotal      decimal.Decimal `json:"subTotal"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	TaxTotal      decimal.Decimal `json:"taxTotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Notes         string          `json:"notes"`
}

// ToPublic projects an invoice for the public surface.
func (inv Invoice) ToPublic() PublicView {
	view := PublicView{
		PublicID:      inv.PublicID,
		Number:        inv.Number,
		Year:          inv.Year,
		Date:          inv.Date,
		ExpiredDate:   inv.ExpiredDate,
		Items:         inv.Items,
		Currency:      inv.Currency,
		SubTotal:      inv.SubTotal,
		TaxRate:       inv.TaxRate,
		TaxTotal:      inv.TaxTotal,
		Discount:      inv.Discount,
		Total:         inv.Total,
		AmountPaid:    inv.AmountPaid,
		Outstanding:   inv.Outstanding(),
		Status:        inv.Status,
		PaymentStatus: inv.PaymentStatus,
		Notes:         inv.Notes,
	}
	if inv.Client != nil {
		view.ClientName = inv.Client.Name
	}
	return view
}
