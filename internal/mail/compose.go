package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
)

// DocumentNotice carries what a client needs to see about an invoice or quote.
type DocumentNotice struct {
	Kind        string
	Number      int64
	Year        int
	ClientName  string
	ClientEmail string
	CompanyName string
	Currency    string
	Total       decimal.Decimal
	Outstanding decimal.Decimal
	DueDate     time.Time
	Link        string
}

// Compose renders a notice as a plain-text message.
func Compose(n DocumentNotice) Message {
	from := n.CompanyName
	if from == "" {
		from = "us"
	}
	kind := strings.ToLower(n.Kind)
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", n.ClientName)
	fmt.Fprintf(&b, "Please find %s #%d/%d from %s.\n\n", kind, n.Number, n.Year, from)
	fmt.Fprintf(&b, "Total: %s\n", money.Format(n.Total, n.Currency))
	if n.Outstanding.IsPositive() {
		fmt.Fprintf(&b, "Amount due: %s\n", money.Format(n.Outstanding, n.Currency))
	}
	if !n.DueDate.IsZero() {
		fmt.Fprintf(&b, "Due date: %s\n", n.DueDate.UTC().Format("2 Jan 2006"))
	}
	if n.Link != "" {
		fmt.Fprintf(&b, "\nView it online: %s\n", n.Link)
	}
	b.WriteString("\nThank you for your business.\n")
	return Message{
		To:      n.ClientEmail,
		Subject: fmt.Sprintf("%s #%d from %s", cases.Title(language.English).String(kind), n.Number, from),
		Body:    b.String(),
	}
}
