package quotes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerdesk/ledgerdesk/internal/clients"
	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/mail"
	"github.com/ledgerdesk/ledgerdesk/internal/numbering"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	quotes map[int64]Quote
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotes: make(map[int64]Quote)}
}

func (m *memoryRepo) lookup(scope shared.Scope, id int64) (Quote, bool) {
	q, ok := m.quotes[id]
	if !ok || q.CreatedBy != scope.OwnerID || (q.Removed && scope.Visibility == shared.VisibleOnly) {
		return Quote{}, false
	}
	return q, true
}

func (m *memoryRepo) Create(_ context.Context, q Quote) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	q.ID = m.nextID
	q.Client = &invoices.ClientSummary{ID: q.ClientID, Name: "Acme", Email: "billing@acme.test"}
	m.quotes[q.ID] = q
	return q, nil
}

func (m *memoryRepo) Get(_ context.Context, scope shared.Scope, id int64) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.lookup(scope, id)
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryRepo) List(_ context.Context, scope shared.Scope, filter ListFilter) ([]Quote, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quote
	for id := range m.quotes {
		if q, ok := m.lookup(scope, id); ok && (filter.Status == "" || q.Status == filter.Status) {
			out = append(out, q)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Update(_ context.Context, scope shared.Scope, q Quote, entry shared.AuditEntry) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.lookup(scope, q.ID)
	if !ok {
		return Quote{}, ErrNotFound
	}
	if existing.Status != StatusDraft && existing.Status != StatusSent {
		return Quote{}, ErrNotEditable
	}
	q.Status = existing.Status
	q.AuditLog = append(existing.AuditLog, entry)
	m.quotes[q.ID] = q
	return q, nil
}

func (m *memoryRepo) SoftDelete(_ context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.lookup(scope, id)
	if !ok {
		return ErrNotFound
	}
	q.Removed = true
	q.AuditLog = append(q.AuditLog, entry)
	m.quotes[id] = q
	return nil
}

func (m *memoryRepo) Transition(_ context.Context, scope shared.Scope, id int64, from []Status, to Status, entry shared.AuditEntry) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.lookup(scope, id)
	if !ok {
		return Quote{}, ErrNotFound
	}
	for _, s := range from {
		if q.Status == s {
			q.Status = to
			q.AuditLog = append(q.AuditLog, entry)
			m.quotes[id] = q
			return q, nil
		}
	}
	return Quote{}, ErrInvalidTransition
}

func (m *memoryRepo) Claim(_ context.Context, scope shared.Scope, id int64, entry shared.AuditEntry) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.lookup(scope, id)
	if !ok {
		return Quote{}, ErrNotFound
	}
	if q.Status == StatusConverted {
		return Quote{}, ErrAlreadyConverted
	}
	q.Status = StatusConverted
	q.AuditLog = append(q.AuditLog, entry)
	m.quotes[id] = q
	return q, nil
}

func (m *memoryRepo) Unclaim(_ context.Context, scope shared.Scope, id int64, restore Status, entry shared.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.lookup(scope, id)
	if ok && q.Status == StatusConverted && q.ConvertedInvoiceID == nil {
		q.Status = restore
		q.AuditLog = append(q.AuditLog, entry)
		m.quotes[id] = q
	}
	return nil
}

func (m *memoryRepo) LinkInvoice(_ context.Context, scope shared.Scope, id, invoiceID int64) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.lookup(scope, id)
	if !ok {
		return Quote{}, ErrNotFound
	}
	q.ConvertedInvoiceID = &invoiceID
	m.quotes[id] = q
	return q, nil
}

type sequence struct{ next int64 }

func (s *sequence) Next(context.Context, int64, numbering.Kind) (int64, error) {
	s.next++
	return s.next, nil
}

type defaultSettings struct{}

func (defaultSettings) ForOwner(_ context.Context, ownerID int64) (settings.Settings, error) {
	return settings.Defaults(ownerID), nil
}

type anyClient struct{}

func (anyClient) Get(_ context.Context, caller shared.Identity, id int64) (clients.Client, error) {
	return clients.Client{ID: id, Name: "Acme", Email: "billing@acme.test", CreatedBy: caller.UserID}, nil
}

type fakeInvoices struct {
	err     error
	created []invoices.Invoice
}

func (f *fakeInvoices) CreateFromQuote(_ context.Context, caller shared.Identity, src invoices.QuoteSource) (invoices.Invoice, error) {
	if f.err != nil {
		return invoices.Invoice{}, f.err
	}
	quoteID := src.QuoteID
	inv := invoices.Invoice{
		ID:               int64(len(f.created) + 100),
		ClientID:         src.ClientID,
		Items:            src.Items,
		Total:            src.Total,
		Status:           invoices.StatusDraft,
		ConvertedQuoteID: &quoteID,
		CreatedBy:        caller.UserID,
	}
	f.created = append(f.created, inv)
	return inv, nil
}

type nopQueue struct{ sent []mail.Message }

func (q *nopQueue) EnqueueEmail(_ context.Context, msg mail.Message) error {
	q.sent = append(q.sent, msg)
	return nil
}

var owner = shared.Identity{UserID: 1, Role: shared.RoleUser}

func newTestService(inv *fakeInvoices) (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	svc := NewService(repo, Ports{
		Numbers:  &sequence{next: 999},
		Settings: defaultSettings{},
		Clients:  anyClient{},
		Invoices: inv,
		Mail:     &nopQueue{},
	}, nil, func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) })
	return svc, repo
}

func sampleInput() Input {
	rate := decimal.NewFromInt(10)
	return Input{
		ClientID: 3,
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []invoices.ItemInput{
			{ItemName: "Design", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("250")},
		},
		TaxRate: &rate,
	}
}

func TestCreateQuoteComputesTotals(t *testing.T) {
	svc, _ := newTestService(&fakeInvoices{})
	q, err := svc.Create(context.Background(), owner, sampleInput())
	require.NoError(t, err)
	require.Equal(t, int64(1000), q.Number)
	require.Equal(t, StatusDraft, q.Status)
	require.Equal(t, "500", q.SubTotal.String())
	require.Equal(t, "50", q.TaxTotal.String())
	require.Equal(t, "550", q.Total.String())
}

func TestConvertTwiceFailsAndKeepsFirstInvoice(t *testing.T) {
	inv := &fakeInvoices{}
	svc, _ := newTestService(inv)
	ctx := context.Background()
	q, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	first, err := svc.Convert(ctx, owner, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, first.Quote.Status)
	require.Equal(t, first.Invoice.ID, *first.Quote.ConvertedInvoiceID)
	require.True(t, first.Invoice.Total.Equal(q.Total))

	_, err = svc.Convert(ctx, owner, q.ID)
	require.ErrorIs(t, err, ErrAlreadyConverted)
	require.Len(t, inv.created, 1)

	stored, err := svc.Get(ctx, owner, q.ID)
	require.NoError(t, err)
	require.Equal(t, first.Invoice.ID, *stored.ConvertedInvoiceID)
}

func TestConvertFailureRevertsClaim(t *testing.T) {
	inv := &fakeInvoices{err: errors.New("numbering unavailable")}
	svc, _ := newTestService(inv)
	ctx := context.Background()
	q, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	_, err = svc.Send(ctx, owner, q.ID)
	require.NoError(t, err)

	_, err = svc.Convert(ctx, owner, q.ID)
	require.Error(t, err)

	stored, err := svc.Get(ctx, owner, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, stored.Status)
	require.Nil(t, stored.ConvertedInvoiceID)
}

func TestAcceptRequiresSentQuote(t *testing.T) {
	svc, _ := newTestService(&fakeInvoices{})
	ctx := context.Background()
	q, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	_, err = svc.Accept(ctx, owner, q.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Send(ctx, owner, q.ID)
	require.NoError(t, err)
	accepted, err := svc.Accept(ctx, owner, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, accepted.Status)

	_, err = svc.Update(ctx, owner, q.ID, sampleInput())
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestRejectSentQuote(t *testing.T) {
	svc, _ := newTestService(&fakeInvoices{})
	ctx := context.Background()
	q, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	_, err = svc.Send(ctx, owner, q.ID)
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, owner, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
}
