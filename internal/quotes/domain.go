package quotes

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Status is the quote lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusConverted Status = "converted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusConverted:
		return true
	}
	return false
}

var (
	// ErrNotFound indicates the quote does not exist for the owner.
	ErrNotFound = fmt.Errorf("quote: %w", httpx.ErrNotFound)
	// ErrInvalidTransition indicates the quote status does not allow the action.
	ErrInvalidTransition = fmt.Errorf("quote status does not allow this action: %w", httpx.ErrConflict)
	// ErrNotEditable indicates the quote can no longer be edited.
	ErrNotEditable = fmt.Errorf("only draft or sent quotes can be edited: %w", httpx.ErrConflict)
	// ErrAlreadyConverted indicates the quote already produced an invoice.
	ErrAlreadyConverted = fmt.Errorf("quote already converted: %w", httpx.ErrConflict)
	// ErrDuplicateNumber indicates the number is already used by the owner.
	ErrDuplicateNumber = fmt.Errorf("quote number already exists: %w", httpx.ErrDuplicate)
)

// Quote is a priced offer that can be converted into an invoice.
type Quote struct {
	ID                 int64                   `json:"id"`
	Number             int64                   `json:"number"`
	Year               int                     `json:"year"`
	ClientID           int64                   `json:"clientId"`
	Client             *invoices.ClientSummary `json:"client,omitempty"`
	Date               time.Time               `json:"date"`
	ExpiredDate        time.Time               `json:"expiredDate"`
	Items              []invoices.Item         `json:"items"`
	Currency           string                  `json:"currency"`
	SubTotal           decimal.Decimal         `json:"subTotal"`
	TaxRate            decimal.Decimal         `json:"taxRate"`
	TaxTotal           decimal.Decimal         `json:"taxTotal"`
	Discount           decimal.Decimal         `json:"discount"`
	Credit             decimal.Decimal         `json:"credit"`
	Total              decimal.Decimal         `json:"total"`
	Status             Status                  `json:"status"`
	Notes              string                  `json:"notes"`
	ConvertedInvoiceID *int64                  `json:"convertedInvoiceId,omitempty"`
	AuditLog           []shared.AuditEntry     `json:"auditLog"`
	Removed            bool                    `json:"removed"`
	CreatedBy          int64                   `json:"createdBy"`
	CreatedAt          time.Time               `json:"createdAt"`
	UpdatedAt          time.Time               `json:"updatedAt"`
}

// Source projects the quote for invoice conversion.
func (q Quote) Source() invoices.QuoteSource {
	return invoices.QuoteSource{
		QuoteID:  q.ID,
		ClientID: q.ClientID,
		Items:    q.Items,
		Currency: q.Currency,
		SubTotal: q.SubTotal,
		TaxRate:  q.TaxRate,
		TaxTotal: q.TaxTotal,
		Discount: q.Discount,
		Credit:   q.Credit,
		Total:    q.Total,
		Notes:    q.Notes,
	}
}

// Input is the create/update payload.
type Input struct {
	ClientID    int64                `json:"clientId" validate:"required,gt=0"`
	Date        time.Time            `json:"date" validate:"required"`
	ExpiredDate *time.Time           `json:"expiredDate"`
	Items       []invoices.ItemInput `json:"items" validate:"required,min=1,dive"`
	Currency    string               `json:"currency"`
	TaxRate     *decimal.Decimal     `json:"taxRate"`
	Discount    decimal.Decimal      `json:"discount"`
	Credit      decimal.Decimal      `json:"credit"`
	Notes       *string              `json:"notes" validate:"omitempty,max=2000"`
}

// ListFilter narrows a quote listing.
type ListFilter struct {
	shared.ListParams
	Status   Status
	ClientID int64
}

// ConversionResult reports the outcome of Convert.
type ConversionResult struct {
	Quote   Quote            `json:"quote"`
	Invoice invoices.Invoice `json:"invoice"`
}
