package invoices

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/clients"
	"github.com/ledgerdesk/ledgerdesk/internal/mail"
	"github.com/ledgerdesk/ledgerdesk/internal/numbering"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
	"github.com/ledgerdesk/ledgerdesk/internal/stock"
)

type memoryRepo struct {
	mu       sync.Mutex
	nextID   int64
	invoices map[int64]Invoice
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: make(map[int64]Invoice)}
}

func visible(scope shared.Scope, inv Invoice) bool {
	return inv.CreatedBy == scope.OwnerID && (scope.Visibility == shared.IncludeRemoved || !inv.Removed)
}

func (m *memoryRepo) Create(_ context.Context, inv Invoice) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.invoices {
		if other.CreatedBy == inv.CreatedBy && other.Number == inv.Number {
			return Invoice{}, ErrDuplicateNumber
		}
	}
	m.nextID++
	inv.ID = m.nextID
	inv.Client = &ClientSummary{ID: inv.ClientID, Name: "Acme", Email: "billing@acme.test"}
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memoryRepo) Get(_ context.Context, scope shared.Scope, id int64) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || !visible(scope, inv) {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepo) GetByPublicID(_ context.Context, publicID uuid.UUID) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.PublicID == publicID && !inv.Removed {
			return inv, nil
		}
	}
	return Invoice{}, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if visible(scope, inv) && (filter.Status == "" || inv.Status == filter.Status) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) ListForClient(_ context.Context, ownerID, clientID int64) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.CreatedBy == ownerID && inv.ClientID == clientID && !inv.Removed && inv.Status != StatusDraft {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memoryRepo) Update(_ context.Context, scope shared.Scope, inv Invoice, entry shared.AuditEntry) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.invoices[inv.ID]
	if !ok || !visible(scope, existing) {
		return Invoice{}, ErrNotFound
	}
	inv.AuditLog = append(existing.AuditLog, entry)
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memoryRepo) SoftDelete(_ context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || !visible(scope, inv) {
		return ErrNotFound
	}
	inv.Removed = true
	inv.AuditLog = append(inv.AuditLog, entry)
	m.invoices[id] = inv
	return nil
}

func (m *memoryRepo) Transition(_ context.Context, scope shared.Scope, id int64, from []Status, to Status, entry shared.AuditEntry) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || !visible(scope, inv) {
		return Invoice{}, ErrNotFound
	}
	for _, s := range from {
		if inv.Status == s {
			inv.Status = to
			inv.AuditLog = append(inv.AuditLog, entry)
			m.invoices[id] = inv
			return inv, nil
		}
	}
	return Invoice{}, ErrInvalidTransition
}

func (m *memoryRepo) RecordPayment(_ context.Context, scope shared.Scope, id int64, amount decimal.Decimal, entry shared.AuditEntry) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || !visible(scope, inv) {
		return Invoice{}, ErrNotFound
	}
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	if inv.AmountPaid.GreaterThanOrEqual(inv.Total) {
		inv.PaymentStatus = PaymentPaid
		inv.Status = StatusPaid
	} else {
		inv.PaymentStatus = PaymentPartially
	}
	inv.AuditLog = append(inv.AuditLog, entry)
	m.invoices[id] = inv
	return inv, nil
}

func (m *memoryRepo) SweepOverdue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, inv := range m.invoices {
		if (inv.Status == StatusPending || inv.Status == StatusSent) && inv.PaymentStatus != PaymentPaid && !inv.Removed && inv.ExpiredDate.Before(now) {
			inv.Status = StatusOverdue
			m.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

type counterNumbers struct {
	mu   sync.Mutex
	next int64
}

func (c *counterNumbers) Next(context.Context, int64, numbering.Kind) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next, nil
}

type recordingStock struct {
	synced   map[int64][]stock.Line
	released []int64
}

func (r *recordingStock) Sync(_ context.Context, _ int64, invoiceID int64, lines []stock.Line) (stock.Result, error) {
	r.synced[invoiceID] = lines
	return stock.Result{}, nil
}

func (r *recordingStock) Release(_ context.Context, _ int64, invoiceID int64) (stock.Result, error) {
	r.released = append(r.released, invoiceID)
	return stock.Result{}, nil
}

type fixedSettings struct{ s settings.Settings }

func (f fixedSettings) ForOwner(_ context.Context, ownerID int64) (settings.Settings, error) {
	s := f.s
	s.UserID = ownerID
	return s, nil
}

type knownClients struct{}

func (knownClients) Get(_ context.Context, caller shared.Identity, id int64) (clients.Client, error) {
	if id != 7 {
		return clients.Client{}, clients.ErrNotFound
	}
	return clients.Client{ID: id, Name: "Acme", Email: "billing@acme.test", CreatedBy: caller.UserID}, nil
}

type fakeQueue struct {
	err  error
	sent []mail.Message
}

func (q *fakeQueue) EnqueueEmail(_ context.Context, msg mail.Message) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

var (
	owner    = shared.Identity{UserID: 1, Email: "owner@ledger.test", Role: shared.RoleUser}
	fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc   *Service
	repo  *memoryRepo
	stock *recordingStock
	queue *fakeQueue
}

func newFixture() fixture {
	repo := newMemoryRepo()
	st := &recordingStock{synced: make(map[int64][]stock.Line)}
	queue := &fakeQueue{}
	defaults := settings.Defaults(0)
	defaults.CompanyName = "Ledger Co"
	svc := NewService(repo, Ports{
		Numbers:  &counterNumbers{next: 999},
		Stock:    st,
		Settings: fixedSettings{s: defaults},
		Clients:  knownClients{},
		Mail:     queue,
	}, ServiceConfig{PublicBaseURL: "https://app.ledger.test/", Now: func() time.Time { return fixedNow }}, nil)
	return fixture{svc: svc, repo: repo, stock: st, queue: queue}
}

func invoiceInput(price string, status Status) Input {
	return Input{
		ClientID: 7,
		Date:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Items:    []ItemInput{{ItemName: "Widget", Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString(price)}},
		Status:   status,
	}
}

func TestCreateAppliesDefaultsAndSyncsStock(t *testing.T) {
	f := newFixture()
	inv, err := f.svc.Create(context.Background(), owner, invoiceInput("100", ""))
	require.NoError(t, err)
	require.Equal(t, int64(1000), inv.Number)
	require.Equal(t, 2024, inv.Year)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, PaymentUnpaid, inv.PaymentStatus)
	require.Equal(t, "USD", inv.Currency)
	require.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), inv.ExpiredDate)
	require.Equal(t, "100", inv.Total.String())
	require.NotEqual(t, uuid.Nil, inv.PublicID)
	require.Len(t, f.stock.synced[inv.ID], 1)
	require.Equal(t, "Widget", f.stock.synced[inv.ID][0].Name)
}

func TestCreateRejectsUnknownClient(t *testing.T) {
	f := newFixture()
	input := invoiceInput("100", "")
	input.ClientID = 99
	_, err := f.svc.Create(context.Background(), owner, input)
	require.ErrorIs(t, err, clients.ErrNotFound)
}

func TestRecordPaymentExactAmountMarksPaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusPending))
	require.NoError(t, err)

	paid, err := f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	require.True(t, paid.AmountPaid.Equal(decimal.NewFromInt(100)))
	require.Equal(t, PaymentPaid, paid.PaymentStatus)
	require.Equal(t, StatusPaid, paid.Status)
	require.Equal(t, "payment", paid.AuditLog[len(paid.AuditLog)-1].Action)
}

func TestRecordPaymentOverpaymentAccepted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusPending))
	require.NoError(t, err)

	paid, err := f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(150)})
	require.NoError(t, err)
	require.True(t, paid.AmountPaid.Equal(decimal.NewFromInt(150)))
	require.Equal(t, PaymentPaid, paid.PaymentStatus)
	require.True(t, paid.Outstanding().IsZero())
}

func TestRecordPaymentPartialKeepsStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusSent))
	require.NoError(t, err)

	paid, err := f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(40)})
	require.NoError(t, err)
	require.Equal(t, PaymentPartially, paid.PaymentStatus)
	require.Equal(t, StatusSent, paid.Status)
	require.Equal(t, "60", paid.Outstanding().String())
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusPending))
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestOverdueInvoiceBecomesPaidOnFullPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusPending))
	require.NoError(t, err)

	n, err := f.svc.SweepOverdue(ctx, inv.ExpiredDate.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	paid, err := f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.Equal(t, PaymentPaid, paid.PaymentStatus)
}

func TestSweepOverdueIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, status := range []Status{StatusPending, StatusSent, StatusDraft} {
		_, err := f.svc.Create(ctx, owner, invoiceInput("10", status))
		require.NoError(t, err)
	}
	settled, err := f.svc.Create(ctx, owner, invoiceInput("10", StatusSent))
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, owner, settled.ID, PaymentInput{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, owner, invoiceInput("0", StatusSent))
	require.NoError(t, err)
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	first, err := f.svc.SweepOverdue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), first)

	second, err := f.svc.SweepOverdue(ctx, now)
	require.NoError(t, err)
	require.Zero(t, second)
}

func TestUpdateShrinkingTotalBelowPaidMarksPaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusSent))
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(60)})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, owner, inv.ID, invoiceInput("50", ""))
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, updated.PaymentStatus)
	require.Equal(t, StatusPaid, updated.Status)
	require.True(t, updated.Outstanding().IsZero())

	n, err := f.svc.SweepOverdue(ctx, updated.ExpiredDate.Add(24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestUpdateGrowingTotalReopensPaidInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusSent))
	require.NoError(t, err)
	paid, err := f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	updated, err := f.svc.Update(ctx, owner, inv.ID, invoiceInput("150", ""))
	require.NoError(t, err)
	require.Equal(t, PaymentPartially, updated.PaymentStatus)
	require.Equal(t, StatusSent, updated.Status)
	require.Equal(t, "50", updated.Outstanding().String())

	n, err := f.svc.SweepOverdue(ctx, updated.ExpiredDate.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestUpdateRejectsPaidStatusWithBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", StatusSent))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, owner, inv.ID, invoiceInput("100", StatusPaid))
	require.ErrorIs(t, err, httpx.ErrValidation)

	stored, err := f.svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, stored.Status)

	_, err = f.svc.Create(ctx, owner, invoiceInput("100", StatusPaid))
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateResyncsStockAndKeepsCurrencyAndTax(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	input := invoiceInput("100", "")
	input.Currency = "EUR"
	rate := decimal.NewFromInt(10)
	input.TaxRate = &rate
	inv, err := f.svc.Create(ctx, owner, input)
	require.NoError(t, err)
	require.Len(t, f.stock.synced[inv.ID], 1)

	productID := int64(3)
	change := invoiceInput("20", "")
	change.Items = []ItemInput{
		{ProductID: &productID, ItemName: "Bolt", Quantity: decimal.NewFromInt(4), Price: decimal.NewFromInt(5)},
		{ItemName: "Nut", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(1)},
	}
	updated, err := f.svc.Update(ctx, owner, inv.ID, change)
	require.NoError(t, err)
	require.Equal(t, "EUR", updated.Currency)
	require.Equal(t, "10", updated.TaxRate.String())
	// (20 + 2) + 10% tax
	require.Equal(t, "24.2", updated.Total.String())
	require.Equal(t, StatusDraft, updated.Status)
	require.Equal(t, "updated", updated.AuditLog[len(updated.AuditLog)-1].Action)

	lines := f.stock.synced[inv.ID]
	require.Len(t, lines, 2)
	require.Equal(t, int64(3), lines[0].ProductID)
	require.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(4)))
	require.Equal(t, "Nut", lines[1].Name)
}

func TestCreateZeroTotalDraftStaysDraft(t *testing.T) {
	f := newFixture()
	inv, err := f.svc.Create(context.Background(), owner, invoiceInput("0", ""))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, PaymentPaid, inv.PaymentStatus)
}

func TestSendQueuesEmailAndMarksSent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", ""))
	require.NoError(t, err)

	sent, err := f.svc.Send(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.Len(t, f.queue.sent, 1)
	require.Equal(t, "billing@acme.test", f.queue.sent[0].To)
	require.Equal(t, "Invoice #1000 from Ledger Co", f.queue.sent[0].Subject)
	require.Contains(t, f.queue.sent[0].Body, "https://app.ledger.test/public/invoices/"+inv.PublicID.String())

	_, err = f.svc.Send(ctx, owner, inv.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSendEnqueueFailureLeavesDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", ""))
	require.NoError(t, err)
	f.queue.err = errors.New("redis down")

	_, err = f.svc.Send(ctx, owner, inv.ID)
	require.Error(t, err)

	stored, err := f.svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestDeleteReleasesStockAndHidesInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", ""))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, owner, inv.ID))
	require.Equal(t, []int64{inv.ID}, f.stock.released)
	_, err = f.svc.Get(ctx, owner, inv.ID)
	require.ErrorIs(t, err, ErrNotFound)

	items, _, err := f.svc.List(ctx, owner, ListFilter{IncludeRemoved: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestOtherOwnerCannotReadInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("100", ""))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, shared.Identity{UserID: 2, Role: shared.RoleUser}, inv.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateFromQuoteCopiesTotals(t *testing.T) {
	f := newFixture()
	src := QuoteSource{
		QuoteID:  42,
		ClientID: 7,
		Items:    []Item{{ItemName: "Consulting", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(50), Total: decimal.NewFromInt(100)}},
		Currency: "EUR",
		SubTotal: decimal.NewFromInt(100),
		TaxRate:  decimal.NewFromInt(10),
		TaxTotal: decimal.NewFromInt(10),
		Total:    decimal.NewFromInt(110),
	}
	inv, err := f.svc.CreateFromQuote(context.Background(), owner, src)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, fixedNow.AddDate(0, 0, QuoteDueDays), inv.ExpiredDate)
	require.Equal(t, int64(42), *inv.ConvertedQuoteID)
	require.True(t, inv.Total.Equal(decimal.NewFromInt(110)))
	require.Equal(t, "EUR", inv.Currency)
}

func TestPayPublicSettlesOutstandingOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, owner, invoiceInput("80", StatusSent))
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, owner, inv.ID, PaymentInput{Amount: decimal.NewFromInt(30)})
	require.NoError(t, err)

	view, err := f.svc.PayPublic(ctx, inv.PublicID.String())
	require.NoError(t, err)
	require.True(t, view.AmountPaid.Equal(decimal.NewFromInt(80)))
	require.Equal(t, PaymentPaid, view.PaymentStatus)

	_, err = f.svc.PayPublic(ctx, inv.PublicID.String())
	require.ErrorIs(t, err, ErrAlreadyPaid)

	_, err = f.svc.GetPublic(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
}
