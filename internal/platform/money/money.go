// Package money holds currency validation and amount formatting helpers.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
)

// DefaultCurrency applies when neither the document nor settings name one.
const DefaultCurrency = "USD"

// Hundred is reused by percentage calculations.
var Hundred = decimal.NewFromInt(100)

// NormalizeCurrency validates an ISO 4217 code and returns it upper-cased.
// An empty code yields fallback.
func NormalizeCurrency(code, fallback string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = fallback
	}
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: unknown currency %q", httpx.ErrValidation, code)
	}
	return unit.String(), nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Format renders an amount with its ISO code and grouped digits for display in emails.
func Format(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}
	f, _ := amount.Round(2).Float64()
	p := message.NewPrinter(language.English)
	return p.Sprintf("%s %.2f", unit.String(), f)
}
