package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

type fakeRepo struct {
	open       []OpenInvoice
	totals     []MonthTotal
	failTop    error
	buildCalls atomic.Int32
	// gate, when set, holds Revenue until closed.
	gate chan struct{}

	mu            sync.Mutex
	numberQueries []int64
	clientQueries []string
}

func (f *fakeRepo) record(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientQueries = append(f.clientQueries, q)
}

func (f *fakeRepo) Revenue(ctx context.Context, _ int64) (decimal.Decimal, error) {
	f.buildCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}
	return decimal.NewFromInt(1000), nil
}

func (f *fakeRepo) ExpenseTotal(context.Context, int64) (decimal.Decimal, error) {
	return decimal.NewFromInt(300), nil
}

func (f *fakeRepo) Outstanding(context.Context, int64) (Outstanding, error) {
	sum := decimal.Zero
	for _, o := range f.open {
		sum = sum.Add(o.Outstanding)
	}
	return Outstanding{Count: len(f.open), Amount: sum}, nil
}

func (f *fakeRepo) InvoiceCount(context.Context, int64) (int, error) { return 9, nil }

func (f *fakeRepo) ActiveClients(context.Context, int64) (int, error) { return 3, nil }

func (f *fakeRepo) RecentInvoices(context.Context, int64, int) ([]RecentInvoice, error) {
	return []RecentInvoice{{ID: 1, Number: 1001, ClientName: "Acme"}}, nil
}

func (f *fakeRepo) MonthlyTotals(context.Context, int64, time.Time, time.Time) ([]MonthTotal, error) {
	return f.totals, nil
}

func (f *fakeRepo) OpenInvoices(context.Context, int64) ([]OpenInvoice, error) {
	return f.open, nil
}

func (f *fakeRepo) TopClients(context.Context, int64, int) ([]TopClient, error) {
	if f.failTop != nil {
		return nil, f.failTop
	}
	return []TopClient{{ClientID: 1, Name: "Acme", Revenue: decimal.NewFromInt(1000)}}, nil
}

func (f *fakeRepo) SearchClients(_ context.Context, _ int64, q string, _ int) ([]SearchHit, error) {
	f.record("clients:" + q)
	return []SearchHit{{ID: 1, Label: "Acme"}}, nil
}

func (f *fakeRepo) SearchInvoicesByNumber(_ context.Context, _ int64, number int64, _ int) ([]SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numberQueries = append(f.numberQueries, number)
	return []SearchHit{{ID: 5, Label: "#1042"}}, nil
}

func (f *fakeRepo) SearchInvoicesByClient(_ context.Context, _ int64, q string, _ int) ([]SearchHit, error) {
	f.record("invoices:" + q)
	return nil, nil
}

func (f *fakeRepo) SearchProducts(context.Context, int64, string, int) ([]SearchHit, error) {
	return nil, nil
}

var (
	owner = shared.Identity{UserID: 1, Role: shared.RoleUser}
	now   = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute, nil)
}

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAgingBoundaries(t *testing.T) {
	open := []OpenInvoice{
		{ExpiredDate: now, Outstanding: amt(1)},
		{ExpiredDate: now.Add(time.Hour), Outstanding: amt(2)},
		{ExpiredDate: now.Add(-30 * day), Outstanding: amt(10)},
		{ExpiredDate: now.Add(-30*day - time.Second), Outstanding: amt(100)},
		{ExpiredDate: now.Add(-60 * day), Outstanding: amt(1000)},
		{ExpiredDate: now.Add(-90 * day), Outstanding: amt(10000)},
		{ExpiredDate: now.Add(-91 * day), Outstanding: amt(100000)},
	}
	a := BuildAging(open, now)
	require.Equal(t, "3", a.Current.String())
	require.Equal(t, "10", a.Days1To30.String())
	require.Equal(t, "1100", a.Days31To60.String())
	require.Equal(t, "10000", a.Days61To90.String())
	require.Equal(t, "100000", a.Over90.String())
	require.Equal(t, "111113", a.Sum().String())
}

func TestPercentChange(t *testing.T) {
	require.Equal(t, "100", PercentChange(decimal.Zero, amt(500)).String())
	require.Equal(t, "-50", PercentChange(amt(200), amt(100)).String())
	require.Equal(t, "0", PercentChange(decimal.Zero, decimal.Zero).String())
	require.Equal(t, "25", PercentChange(amt(400), amt(500)).String())
}

func TestBuildSeriesUsesPreviousDecemberInJanuary(t *testing.T) {
	jan := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	from, to := seriesWindow(jan)
	require.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), to)

	points, trend := BuildSeries([]MonthTotal{
		{Month: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), Income: amt(200), Expense: amt(50)},
		{Month: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Income: amt(100), Expense: amt(50)},
	}, jan)
	require.Len(t, points, 12)
	require.Equal(t, 1, points[0].Month)
	require.Equal(t, "100", points[0].Income.String())
	require.True(t, points[11].Income.IsZero())
	require.Equal(t, "-50", trend.Income.String())
	require.Equal(t, "0", trend.Expense.String())
}

func TestSnapshotAgingMatchesOutstanding(t *testing.T) {
	repo := &fakeRepo{
		open: []OpenInvoice{
			{ExpiredDate: now.Add(24 * time.Hour), Outstanding: decimal.RequireFromString("120.50")},
			{ExpiredDate: now.Add(-30 * day), Outstanding: decimal.RequireFromString("80")},
			{ExpiredDate: now.Add(-120 * day), Outstanding: decimal.RequireFromString("15.25")},
		},
		totals: []MonthTotal{
			{Month: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Income: amt(0)},
			{Month: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Income: amt(500)},
		},
	}
	svc := NewService(repo, nil)
	snap, err := svc.Snapshot(context.Background(), owner, now)
	require.NoError(t, err)
	require.True(t, snap.Aging.Sum().Equal(snap.Outstanding.Amount))
	require.Equal(t, "80", snap.Aging.Days1To30.String())
	require.Equal(t, "700", snap.Profit.String())
	require.Equal(t, "100", snap.Trend.Income.String())
	require.Equal(t, 3, snap.Outstanding.Count)
	require.Len(t, snap.Monthly, 12)
}

func TestSnapshotAbortsWhenAnySubQueryFails(t *testing.T) {
	repo := &fakeRepo{failTop: errors.New("connection reset")}
	svc := NewService(repo, nil)
	_, err := svc.Snapshot(context.Background(), owner, now)
	require.Error(t, err)
	require.Contains(t, err.Error(), "top clients")
}

func TestSnapshotCachedUntilOwnerChanges(t *testing.T) {
	repo := &fakeRepo{}
	cache := newCache(t)
	svc := NewService(repo, cache)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, owner, now)
	require.NoError(t, err)
	second, err := svc.Snapshot(ctx, owner, now)
	require.NoError(t, err)
	require.Equal(t, int32(1), repo.buildCalls.Load())
	require.True(t, first.Revenue.Equal(second.Revenue))

	cache.Changed(ctx, owner.UserID)
	_, err = svc.Snapshot(ctx, owner, now)
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.buildCalls.Load())

	other := shared.Identity{UserID: 2, Role: shared.RoleUser}
	cache.Changed(ctx, other.UserID)
	_, err = svc.Snapshot(ctx, owner, now)
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.buildCalls.Load())
}

func TestSnapshotSharedBuildSurvivesCancelledCaller(t *testing.T) {
	repo := &fakeRepo{gate: make(chan struct{})}
	svc := NewService(repo, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Snapshot(firstCtx, owner, now)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return repo.buildCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		snap Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := svc.Snapshot(context.Background(), owner, now)
		second <- result{snap, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(repo.gate)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		require.Equal(t, "1000", res.snap.Revenue.String())
	case <-time.After(time.Second):
		t.Fatal("waiting caller did not receive the shared snapshot")
	}
	require.Equal(t, int32(1), repo.buildCalls.Load())
}

func TestSearchRoutesNumericQueryToInvoiceNumber(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	res, err := svc.Search(ctx, owner, " 1042 ")
	require.NoError(t, err)
	require.Equal(t, []int64{1042}, repo.numberQueries)
	require.Len(t, res.Invoices, 1)
	require.Empty(t, res.Products)

	repo.numberQueries = nil
	repo.clientQueries = nil
	_, err = svc.Search(ctx, owner, "acm")
	require.NoError(t, err)
	require.Empty(t, repo.numberQueries)
	require.ElementsMatch(t, []string{"clients:acm", "invoices:acm"}, repo.clientQueries)
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil)
	res, err := svc.Search(context.Background(), owner, "   ")
	require.NoError(t, err)
	require.Empty(t, res.Clients)
	require.Empty(t, repo.clientQueries)
}
