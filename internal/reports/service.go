package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

const (
	minYear = 2000
	maxYear = 2100
)

// Service builds financial reports.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the report service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func checkYear(year int) error {
	if year < minYear || year > maxYear {
		return fmt.Errorf("%w: year must be between %d and %d", httpx.ErrValidation, minYear, maxYear)
	}
	return nil
}

// RevenueVsExpenses returns twelve monthly rows for year.
func (s *Service) RevenueVsExpenses(ctx context.Context, caller shared.Identity, year int) (RevenueVsExpenses, error) {
	if err := caller.Require(); err != nil {
		return RevenueVsExpenses{}, err
	}
	if err := checkYear(year); err != nil {
		return RevenueVsExpenses{}, err
	}
	var revenue, expenses []MonthAmount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		revenue, err = s.repo.MonthlyRevenue(gctx, caller.UserID, year)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.repo.MonthlyExpenses(gctx, caller.UserID, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return RevenueVsExpenses{}, fmt.Errorf("revenue vs expenses: %w", err)
	}
	rev, exp := byMonth(revenue), byMonth(expenses)
	report := RevenueVsExpenses{Year: year, Months: make([]MonthResult, 0, 12), Revenue: decimal.Zero, Expenses: decimal.Zero}
	for m := 1; m <= 12; m++ {
		row := MonthResult{Month: m, Revenue: rev[m], Expenses: exp[m], Profit: rev[m].Sub(exp[m])}
		report.Months = append(report.Months, row)
		report.Revenue = report.Revenue.Add(row.Revenue)
		report.Expenses = report.Expenses.Add(row.Expenses)
	}
	report.Profit = report.Revenue.Sub(report.Expenses)
	return report, nil
}

func byMonth(rows []MonthAmount) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.Month] = r.Amount
	}
	return out
}

// ExpenseBreakdown splits spend in [from, to) by category. Shares are
// percentages of the range total rounded to cents.
func (s *Service) ExpenseBreakdown(ctx context.Context, caller shared.Identity, from, to time.Time) (ExpenseBreakdown, error) {
	if err := caller.Require(); err != nil {
		return ExpenseBreakdown{}, err
	}
	if !to.After(from) {
		return ExpenseBreakdown{}, fmt.Errorf("%w: to must be after from", httpx.ErrValidation)
	}
	rows, err := s.repo.ExpensesByCategory(ctx, caller.UserID, from, to)
	if err != nil {
		return ExpenseBreakdown{}, fmt.Errorf("expense breakdown: %w", err)
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Total)
	}
	report := ExpenseBreakdown{From: from, To: to, Total: total, Categories: make([]CategoryShare, 0, len(rows))}
	for _, r := range rows {
		share := decimal.Zero
		if total.IsPositive() {
			share = money.Round2(r.Total.Div(total).Mul(money.Hundred))
		}
		report.Categories = append(report.Categories, CategoryShare{Category: r.Category, Total: r.Total, Count: r.Count, Share: share})
	}
	return report, nil
}

// TaxSummary returns the taxable base and tax per month of year with totals.
func (s *Service) TaxSummary(ctx context.Context, caller shared.Identity, year int) (TaxSummary, error) {
	if err := caller.Require(); err != nil {
		return TaxSummary{}, err
	}
	if err := checkYear(year); err != nil {
		return TaxSummary{}, err
	}
	rows, err := s.repo.MonthlyTax(ctx, caller.UserID, year)
	if err != nil {
		return TaxSummary{}, fmt.Errorf("tax summary: %w", err)
	}
	found := make(map[int]TaxMonth, len(rows))
	for _, r := range rows {
		found[r.Month] = r
	}
	report := TaxSummary{Year: year, Months: make([]TaxMonth, 0, 12), Taxable: decimal.Zero, Tax: decimal.Zero}
	for m := 1; m <= 12; m++ {
		row, ok := found[m]
		if !ok {
			row = TaxMonth{Month: m, Taxable: decimal.Zero, Tax: decimal.Zero}
		}
		report.Months = append(report.Months, row)
		report.Taxable = report.Taxable.Add(row.Taxable)
		report.Tax = report.Tax.Add(row.Tax)
	}
	return report, nil
}
