package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthAmount is one month's aggregate read from storage. Month is 1-12.
type MonthAmount struct {
	Month  int
	Amount decimal.Decimal
}

// MonthResult is one row of the revenue-vs-expenses report.
type MonthResult struct {
	Month    int             `json:"month"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

// RevenueVsExpenses compares income and spend per month of a year.
type RevenueVsExpenses struct {
	Year     int             `json:"year"`
	Months   []MonthResult   `json:"months"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

// CategoryTotal is a per-category expense aggregate read from storage.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// CategoryShare is one row of the expense breakdown.
type CategoryShare struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Share    decimal.Decimal `json:"share"`
}

// ExpenseBreakdown splits spend in a date range by category.
type ExpenseBreakdown struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Total      decimal.Decimal `json:"total"`
	Categories []CategoryShare `json:"categories"`
}

// TaxMonth is the taxable base and tax charged in a month.
type TaxMonth struct {
	Month   int             `json:"month"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     decimal.Decimal `json:"tax"`
}

// TaxSummary totals tax charged on issued invoices for a year.
type TaxSummary struct {
	Year    int             `json:"year"`
	Months  []TaxMonth      `json:"months"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     decimal.Decimal `json:"tax"`
}
