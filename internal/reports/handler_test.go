package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

type stubRepo struct {
	revenue    []MonthAmount
	expenses   []MonthAmount
	categories []CategoryTotal
	tax        []TaxMonth
	from, to   time.Time
}

func (s *stubRepo) MonthlyRevenue(context.Context, int64, int) ([]MonthAmount, error) {
	return s.revenue, nil
}

func (s *stubRepo) MonthlyExpenses(context.Context, int64, int) ([]MonthAmount, error) {
	return s.expenses, nil
}

func (s *stubRepo) ExpensesByCategory(_ context.Context, _ int64, from, to time.Time) ([]CategoryTotal, error) {
	s.from, s.to = from, to
	return s.categories, nil
}

func (s *stubRepo) MonthlyTax(context.Context, int64, int) ([]TaxMonth, error) {
	return s.tax, nil
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

var caller = shared.Identity{UserID: 1, Role: shared.RoleUser}

func newRouter(repo RepositoryPort) http.Handler {
	h := NewHandler(nil, NewService(repo))
	h.now = func() time.Time { return time.Date(2024, 8, 20, 10, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithIdentity(req.Context(), caller)))
		})
	})
	r.Route("/reports", h.MountRoutes)
	return r
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	require.True(t, env.Success)
	return env.Data
}

func TestRevenueVsExpensesFillsTwelveMonths(t *testing.T) {
	repo := &stubRepo{
		revenue:  []MonthAmount{{Month: 1, Amount: d("1000")}, {Month: 3, Amount: d("250.50")}},
		expenses: []MonthAmount{{Month: 1, Amount: d("400")}, {Month: 12, Amount: d("100")}},
	}
	res := httptest.NewRecorder()
	newRouter(repo).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/reports/revenue-vs-expenses?year=2024", nil))
	require.Equal(t, http.StatusOK, res.Code)

	report := decode[RevenueVsExpenses](t, res)
	require.Equal(t, 2024, report.Year)
	require.Len(t, report.Months, 12)
	require.True(t, report.Months[0].Profit.Equal(d("600")))
	require.True(t, report.Months[11].Profit.Equal(d("-100")))
	require.True(t, report.Revenue.Equal(d("1250.50")))
	require.True(t, report.Profit.Equal(d("750.50")))
}

func TestRevenueVsExpensesRejectsBadYear(t *testing.T) {
	res := httptest.NewRecorder()
	newRouter(&stubRepo{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/reports/revenue-vs-expenses?year=1850", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestExpenseBreakdownShares(t *testing.T) {
	repo := &stubRepo{categories: []CategoryTotal{
		{Category: "rent", Total: d("600"), Count: 2},
		{Category: "travel", Total: d("300"), Count: 3},
		{Category: "office", Total: d("100"), Count: 1},
	}}
	res := httptest.NewRecorder()
	newRouter(repo).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/reports/expense-breakdown?from=2024-01-01&to=2024-03-31", nil))
	require.Equal(t, http.StatusOK, res.Code)

	report := decode[ExpenseBreakdown](t, res)
	require.True(t, report.Total.Equal(d("1000")))
	require.Len(t, report.Categories, 3)
	require.True(t, report.Categories[0].Share.Equal(d("60")))
	require.True(t, report.Categories[2].Share.Equal(d("10")))
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), repo.to)
}

func TestExpenseBreakdownDefaultsToYearToDate(t *testing.T) {
	repo := &stubRepo{}
	res := httptest.NewRecorder()
	newRouter(repo).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/reports/expense-breakdown", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), repo.from)
	require.Equal(t, time.Date(2024, 8, 21, 0, 0, 0, 0, time.UTC), repo.to)
}

func TestExpenseBreakdownRejectsInvertedRange(t *testing.T) {
	res := httptest.NewRecorder()
	newRouter(&stubRepo{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/reports/expense-breakdown?from=2024-05-01&to=2024-04-01", nil))
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestTaxSummaryTotals(t *testing.T) {
	repo := &stubRepo{tax: []TaxMonth{
		{Month: 2, Taxable: d("1000"), Tax: d("100")},
		{Month: 7, Taxable: d("500"), Tax: d("25")},
	}}
	res := httptest.NewRecorder()
	newRouter(repo).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/reports/tax", nil))
	require.Equal(t, http.StatusOK, res.Code)

	report := decode[TaxSummary](t, res)
	require.Equal(t, 2024, report.Year)
	require.Len(t, report.Months, 12)
	require.True(t, report.Tax.Equal(d("125")))
	require.True(t, report.Taxable.Equal(d("1500")))
	require.True(t, report.Months[0].Tax.IsZero())
}
