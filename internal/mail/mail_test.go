package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComposeInvoiceNotice(t *testing.T) {
	msg := Compose(DocumentNotice{
		Kind:        "invoice",
		Number:      1042,
		Year:        2024,
		ClientName:  "Acme",
		ClientEmail: "billing@acme.test",
		CompanyName: "Ledger Co",
		Currency:    "USD",
		Total:       decimal.RequireFromString("1500"),
		Outstanding: decimal.RequireFromString("500"),
		DueDate:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Link:        "https://app.test/public/invoices/abc",
	})
	require.Equal(t, "billing@acme.test", msg.To)
	require.Equal(t, "Invoice #1042 from Ledger Co", msg.Subject)
	require.Contains(t, msg.Body, "Total: USD 1,500.00")
	require.Contains(t, msg.Body, "Amount due: USD 500.00")
	require.Contains(t, msg.Body, "1 May 2024")
	require.Contains(t, msg.Body, "https://app.test/public/invoices/abc")
}

func TestSMTPSenderRendersHeaders(t *testing.T) {
	var captured []byte
	var rcpt []string
	sender := NewSMTPSender("127.0.0.1:1025", "no-reply@ledgerdesk.local", nil)
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		rcpt = to
		captured = msg
		return nil
	}
	sender.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := sender.Send(context.Background(), Message{To: "a@b.test", Subject: "Hi", Body: "line1\nline2"})
	require.NoError(t, err)
	require.Equal(t, []string{"a@b.test"}, rcpt)
	text := string(captured)
	require.True(t, strings.HasPrefix(text, "From: no-reply@ledgerdesk.local\r\n"))
	require.Contains(t, text, "Subject: Hi\r\n")
	require.Contains(t, text, "line1\r\nline2")
}

func TestMessageValidateRejectsHeaderInjection(t *testing.T) {
	require.Error(t, Message{To: ""}.Validate())
	require.Error(t, Message{To: "a@b.test", Subject: "hi\r\nBcc: x@y.test"}.Validate())
	require.NoError(t, Message{To: "a@b.test", Subject: "hi"}.Validate())
}
