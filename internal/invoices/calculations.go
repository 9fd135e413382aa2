package invoices

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
	"github.com/ledgerdesk/ledgerdesk/internal/stock"
)

// Totals are the derived money fields of an invoice or quote.
type Totals struct {
	SubTotal decimal.Decimal
	TaxTotal decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals prices each line and derives the document totals:
// line = qty × price, sub = Σ lines, tax = (sub − discount) × rate / 100,
// total = sub − discount + tax. Every value is rounded to cents.
func ComputeTotals(inputs []ItemInput, discount, taxRate decimal.Decimal) ([]Item, Totals, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(money.Hundred) {
		return nil, Totals{}, fmt.Errorf("%w: tax rate must be between 0 and 100", httpx.ErrValidation)
	}
	if discount.IsNegative() {
		return nil, Totals{}, fmt.Errorf("%w: discount must not be negative", httpx.ErrValidation)
	}
	items := make([]Item, 0, len(inputs))
	sub := decimal.Zero
	for i, in := range inputs {
		if !in.Quantity.IsPositive() {
			return nil, Totals{}, fmt.Errorf("%w: item %d quantity must be greater than 0", httpx.ErrValidation, i+1)
		}
		if in.Price.IsNegative() {
			return nil, Totals{}, fmt.Errorf("%w: item %d price must not be negative", httpx.ErrValidation, i+1)
		}
		price := money.Round2(in.Price)
		line := money.Round2(in.Quantity.Mul(price))
		items = append(items, Item{
			ProductID:   in.ProductID,
			ItemName:    in.ItemName,
			Description: in.Description,
			Quantity:    in.Quantity,
			Price:       price,
			Total:       line,
		})
		sub = sub.Add(line)
	}
	discount = money.Round2(discount)
	if discount.GreaterThan(sub) {
		return nil, Totals{}, fmt.Errorf("%w: discount must not exceed sub total", httpx.ErrValidation)
	}
	taxable := sub.Sub(discount)
	tax := money.Round2(taxable.Mul(taxRate).Div(money.Hundred))
	return items, Totals{
		SubTotal: sub,
		TaxTotal: tax,
		Total:    taxable.Add(tax),
	}, nil
}

// DerivePaymentStatus maps the paid amount onto a payment status. An invoice
// is paid once amountPaid reaches total, so a zero total owes nothing and is
// paid from the start.
func DerivePaymentStatus(amountPaid, total decimal.Decimal) PaymentStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(total):
		return PaymentPaid
	case amountPaid.IsPositive():
		return PaymentPartially
	default:
		return PaymentUnpaid
	}
}

// SettleStatus returns the invoice status that agrees with inv.PaymentStatus
// after an edit. requested is the status the caller asked for, if any.
// A settled invoice is forced to paid unless it is a draft nobody has paid
// against yet. A paid invoice whose balance reopens goes back to sent.
func SettleStatus(inv Invoice, requested Status) (Status, error) {
	settled := inv.PaymentStatus == PaymentPaid
	if requested == StatusPaid && !settled {
		return "", fmt.Errorf("%w: invoice cannot be marked paid with %s outstanding", httpx.ErrValidation, inv.Outstanding().StringFixed(2))
	}
	switch {
	case settled && (inv.Status != StatusDraft || inv.AmountPaid.IsPositive()):
		return StatusPaid, nil
	case !settled && inv.Status == StatusPaid:
		return StatusSent, nil
	default:
		return inv.Status, nil
	}
}

// StockLines converts invoice items into stock lines.
func StockLines(items []Item) []stock.Line {
	lines := make([]stock.Line, 0, len(items))
	for _, it := range items {
		line := stock.Line{Name: it.ItemName, Quantity: it.Quantity}
		if it.ProductID != nil {
			line.ProductID = *it.ProductID
		}
		lines = append(lines, line)
	}
	return lines
}
