package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
)

// PercentChange returns the change from last to current in percent, rounded
// to cents. Growth from nothing counts as 100.
func PercentChange(last, current decimal.Decimal) decimal.Decimal {
	if last.IsZero() {
		if current.IsPositive() {
			return money.Hundred
		}
		return decimal.Zero
	}
	return money.Round2(current.Sub(last).Div(last).Mul(money.Hundred))
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// seriesWindow returns the range of months read for the yearly series and the
// trend: January of now's year, or the previous December when now is in January.
func seriesWindow(now time.Time) (from, to time.Time) {
	year := time.Date(now.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	from = year
	if prev := monthStart(now).AddDate(0, -1, 0); prev.Before(from) {
		from = prev
	}
	return from, year.AddDate(1, 0, 0)
}

// BuildSeries lays totals onto the twelve months of now's year and computes
// the month-over-month trend.
func BuildSeries(totals []MonthTotal, now time.Time) ([]MonthPoint, Trend) {
	byMonth := make(map[time.Time]MonthTotal, len(totals))
	for _, t := range totals {
		byMonth[monthStart(t.Month)] = t
	}
	year := now.UTC().Year()
	points := make([]MonthPoint, 0, 12)
	for m := time.January; m <= time.December; m++ {
		t := byMonth[time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)]
		points = append(points, MonthPoint{Month: int(m), Income: t.Income, Expense: t.Expense})
	}
	this := byMonth[monthStart(now)]
	last := byMonth[monthStart(now).AddDate(0, -1, 0)]
	return points, Trend{
		Income:  PercentChange(last.Income, this.Income),
		Expense: PercentChange(last.Expense, this.Expense),
	}
}
