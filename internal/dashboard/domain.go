package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the owner's dashboard at a point in time.
type Snapshot struct {
	Revenue        decimal.Decimal `json:"revenue"`
	Expenses       decimal.Decimal `json:"expenses"`
	Profit         decimal.Decimal `json:"profit"`
	Outstanding    Outstanding     `json:"outstanding"`
	InvoiceCount   int             `json:"invoiceCount"`
	ActiveClients  int             `json:"activeClients"`
	RecentInvoices []RecentInvoice `json:"recentInvoices"`
	Monthly        []MonthPoint    `json:"monthly"`
	Trend          Trend           `json:"trend"`
	Aging          Aging           `json:"aging"`
	TopClients     []TopClient     `json:"topClients"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// Outstanding counts unpaid, non-draft invoices and what remains owed on them.
type Outstanding struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// RecentInvoice is a compact invoice row.
type RecentInvoice struct {
	ID         int64           `json:"id"`
	Number     int64           `json:"number"`
	ClientName string          `json:"clientName"`
	Date       time.Time       `json:"date"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
}

// MonthPoint is one calendar month of the yearly series.
type MonthPoint struct {
	Month   int             `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// MonthTotal is a monthly aggregate as read from storage. Month is the first
// day of the month in UTC.
type MonthTotal struct {
	Month   time.Time
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Trend is the month-over-month change in percent.
type Trend struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Aging splits the outstanding amount by days past due.
type Aging struct {
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days1To30"`
	Days31To60 decimal.Decimal `json:"days31To60"`
	Days61To90 decimal.Decimal `json:"days61To90"`
	Over90     decimal.Decimal `json:"over90"`
}

// Sum returns the total across all buckets.
func (a Aging) Sum() decimal.Decimal {
	return a.Current.Add(a.Days1To30).Add(a.Days31To60).Add(a.Days61To90).Add(a.Over90)
}

// OpenInvoice is an unpaid invoice considered for aging.
type OpenInvoice struct {
	ExpiredDate time.Time
	Outstanding decimal.Decimal
}

// TopClient ranks clients by invoiced revenue.
type TopClient struct {
	ClientID    int64           `json:"clientId"`
	Name        string          `json:"name"`
	Revenue     decimal.Decimal `json:"revenue"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// SearchHit is a typeahead result.
type SearchHit struct {
	ID       int64  `json:"id"`
	Label    string `json:"label"`
	Subtitle string `json:"subtitle,omitempty"`
}

// SearchResults groups typeahead hits by entity.
type SearchResults struct {
	Clients  []SearchHit `json:"clients"`
	Invoices []SearchHit `json:"invoices"`
	Products []SearchHit `json:"products"`
}
