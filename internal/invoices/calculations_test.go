package invoices

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals(t *testing.T) {
	items, totals, err := ComputeTotals([]ItemInput{
		{ItemName: "Consulting", Quantity: d("3"), Price: d("120")},
		{ItemName: "Widget", Quantity: d("2"), Price: d("19.99")},
	}, d("50"), d("10"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "360", items[0].Total.String())
	require.Equal(t, "39.98", items[1].Total.String())
	require.Equal(t, "399.98", totals.SubTotal.String())
	// (399.98 - 50) * 10% = 34.998 -> 35.00
	require.Equal(t, "35", totals.TaxTotal.String())
	require.Equal(t, "384.98", totals.Total.String())
}

func TestComputeTotalsRoundsHalfUp(t *testing.T) {
	_, totals, err := ComputeTotals([]ItemInput{{ItemName: "x", Quantity: d("1"), Price: d("10.05")}}, decimal.Zero, d("5"))
	require.NoError(t, err)
	// 10.05 * 5% = 0.5025 -> 0.50
	require.Equal(t, "0.5", totals.TaxTotal.String())
	require.Equal(t, "10.55", totals.Total.String())

	_, totals, err = ComputeTotals([]ItemInput{{ItemName: "x", Quantity: d("1"), Price: d("0.5")}}, decimal.Zero, d("1"))
	require.NoError(t, err)
	// 0.005 -> 0.01
	require.Equal(t, "0.01", totals.TaxTotal.String())
}

func TestComputeTotalsValidation(t *testing.T) {
	_, _, err := ComputeTotals([]ItemInput{{ItemName: "x", Quantity: d("0"), Price: d("1")}}, decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = ComputeTotals([]ItemInput{{ItemName: "x", Quantity: d("1"), Price: d("-1")}}, decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = ComputeTotals([]ItemInput{{ItemName: "x", Quantity: d("1"), Price: d("10")}}, d("11"), decimal.Zero)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = ComputeTotals([]ItemInput{{ItemName: "x", Quantity: d("1"), Price: d("10")}}, decimal.Zero, d("120"))
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDerivePaymentStatus(t *testing.T) {
	require.Equal(t, PaymentUnpaid, DerivePaymentStatus(decimal.Zero, d("100")))
	require.Equal(t, PaymentPartially, DerivePaymentStatus(d("40"), d("100")))
	require.Equal(t, PaymentPaid, DerivePaymentStatus(d("100"), d("100")))
	require.Equal(t, PaymentPaid, DerivePaymentStatus(d("120"), d("100")))
	// nothing owed on a zero total
	require.Equal(t, PaymentPaid, DerivePaymentStatus(decimal.Zero, decimal.Zero))
}

func TestSettleStatus(t *testing.T) {
	cases := []struct {
		name      string
		inv       Invoice
		requested Status
		want      Status
	}{
		{"settled sent becomes paid", Invoice{Status: StatusSent, PaymentStatus: PaymentPaid, AmountPaid: d("60"), Total: d("50")}, "", StatusPaid},
		{"settled overdue becomes paid", Invoice{Status: StatusOverdue, PaymentStatus: PaymentPaid, AmountPaid: d("10"), Total: d("10")}, "", StatusPaid},
		{"reopened paid goes back to sent", Invoice{Status: StatusPaid, PaymentStatus: PaymentPartially, AmountPaid: d("60"), Total: d("80")}, "", StatusSent},
		{"unpaid draft stays draft", Invoice{Status: StatusDraft, PaymentStatus: PaymentUnpaid, Total: d("80")}, "", StatusDraft},
		{"zero total draft stays draft", Invoice{Status: StatusDraft, PaymentStatus: PaymentPaid, Total: decimal.Zero}, "", StatusDraft},
		{"zero total sent becomes paid", Invoice{Status: StatusSent, PaymentStatus: PaymentPaid, Total: decimal.Zero}, StatusSent, StatusPaid},
		{"paid-for draft becomes paid", Invoice{Status: StatusDraft, PaymentStatus: PaymentPaid, AmountPaid: d("5"), Total: d("5")}, "", StatusPaid},
		{"partial payment keeps requested", Invoice{Status: StatusPending, PaymentStatus: PaymentPartially, AmountPaid: d("5"), Total: d("9")}, StatusPending, StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SettleStatus(tc.inv, tc.requested)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSettleStatusRejectsPaidWithBalance(t *testing.T) {
	_, err := SettleStatus(Invoice{Status: StatusPaid, PaymentStatus: PaymentPartially, AmountPaid: d("20"), Total: d("50")}, StatusPaid)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "30.00 outstanding")
}
