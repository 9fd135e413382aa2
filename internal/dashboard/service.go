package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

const (
	recentLimit = 5
	topLimit    = 5
	searchLimit = 5

	// buildTimeout bounds a shared snapshot build once it is detached from
	// the request that started it.
	buildTimeout = 30 * time.Second
)

// Service builds dashboards and typeahead search results.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
}

// NewService constructs the dashboard service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Snapshot returns the caller's dashboard as of now. Identical concurrent
// requests share one build, which outlives any single caller giving up.
func (s *Service) Snapshot(ctx context.Context, caller shared.Identity, now time.Time) (Snapshot, error) {
	if err := caller.Require(); err != nil {
		return Snapshot{}, err
	}
	now = now.UTC()
	key, err := s.cache.BuildKey(ctx, caller.UserID, "snapshot", now.Format(time.DateOnly))
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard cache key: %w", err)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		var snap Snapshot
		err := s.cache.FetchJSON(bctx, key, &snap, func(ctx context.Context) (any, error) {
			return s.build(ctx, caller.UserID, now)
		})
		return snap, err
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// build runs every sub-query in parallel. The first failure cancels the rest.
func (s *Service) build(ctx context.Context, ownerID int64, now time.Time) (Snapshot, error) {
	var (
		snap   Snapshot
		totals []MonthTotal
		open   []OpenInvoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Revenue, err = s.repo.Revenue(gctx, ownerID)
		return wrap("revenue", err)
	})
	g.Go(func() (err error) {
		snap.Expenses, err = s.repo.ExpenseTotal(gctx, ownerID)
		return wrap("expenses", err)
	})
	g.Go(func() (err error) {
		snap.Outstanding, err = s.repo.Outstanding(gctx, ownerID)
		return wrap("outstanding", err)
	})
	g.Go(func() (err error) {
		snap.InvoiceCount, err = s.repo.InvoiceCount(gctx, ownerID)
		return wrap("invoice count", err)
	})
	g.Go(func() (err error) {
		snap.ActiveClients, err = s.repo.ActiveClients(gctx, ownerID)
		return wrap("active clients", err)
	})
	g.Go(func() (err error) {
		snap.RecentInvoices, err = s.repo.RecentInvoices(gctx, ownerID, recentLimit)
		return wrap("recent invoices", err)
	})
	g.Go(func() (err error) {
		from, to := seriesWindow(now)
		totals, err = s.repo.MonthlyTotals(gctx, ownerID, from, to)
		return wrap("monthly totals", err)
	})
	g.Go(func() (err error) {
		open, err = s.repo.OpenInvoices(gctx, ownerID)
		return wrap("aging", err)
	})
	g.Go(func() (err error) {
		snap.TopClients, err = s.repo.TopClients(gctx, ownerID, topLimit)
		return wrap("top clients", err)
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.Profit = snap.Revenue.Sub(snap.Expenses)
	snap.Monthly, snap.Trend = BuildSeries(totals, now)
	snap.Aging = BuildAging(open, now)
	if snap.RecentInvoices == nil {
		snap.RecentInvoices = []RecentInvoice{}
	}
	if snap.TopClients == nil {
		snap.TopClients = []TopClient{}
	}
	snap.GeneratedAt = now
	return snap, nil
}

func wrap(part string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("dashboard %s: %w", part, err)
}

// Search looks up clients, invoices and products matching q. A numeric query
// matches invoice numbers exactly; anything else matches client names.
func (s *Service) Search(ctx context.Context, caller shared.Identity, q string) (SearchResults, error) {
	if err := caller.Require(); err != nil {
		return SearchResults{}, err
	}
	results := SearchResults{Clients: []SearchHit{}, Invoices: []SearchHit{}, Products: []SearchHit{}}
	q = strings.TrimSpace(q)
	if q == "" {
		return results, nil
	}
	owner := caller.UserID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.repo.SearchClients(gctx, owner, q, searchLimit)
		if hits != nil {
			results.Clients = hits
		}
		return wrap("search clients", err)
	})
	g.Go(func() error {
		var hits []SearchHit
		var err error
		if number, perr := strconv.ParseInt(q, 10, 64); perr == nil {
			hits, err = s.repo.SearchInvoicesByNumber(gctx, owner, number, searchLimit)
		} else {
			hits, err = s.repo.SearchInvoicesByClient(gctx, owner, q, searchLimit)
		}
		if hits != nil {
			results.Invoices = hits
		}
		return wrap("search invoices", err)
	})
	g.Go(func() error {
		hits, err := s.repo.SearchProducts(gctx, owner, q, searchLimit)
		if hits != nil {
			results.Products = hits
		}
		return wrap("search products", err)
	})
	if err := g.Wait(); err != nil {
		return SearchResults{}, err
	}
	return results, nil
}
