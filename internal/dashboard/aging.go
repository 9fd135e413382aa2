package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// BuildAging buckets open invoices by how long they are past due at now.
// Bucket upper bounds are inclusive: exactly 30 days overdue is 1-30.
func BuildAging(open []OpenInvoice, now time.Time) Aging {
	a := Aging{
		Current:    decimal.Zero,
		Days1To30:  decimal.Zero,
		Days31To60: decimal.Zero,
		Days61To90: decimal.Zero,
		Over90:     decimal.Zero,
	}
	for _, inv := range open {
		overdue := now.Sub(inv.ExpiredDate)
		switch {
		case overdue <= 0:
			a.Current = a.Current.Add(inv.Outstanding)
		case overdue <= 30*day:
			a.Days1To30 = a.Days1To30.Add(inv.Outstanding)
		case overdue <= 60*day:
			a.Days31To60 = a.Days31To60.Add(inv.Outstanding)
		case overdue <= 90*day:
			a.Days61To90 = a.Days61To90.Add(inv.Outstanding)
		default:
			a.Over90 = a.Over90.Add(inv.Outstanding)
		}
	}
	return a
}
