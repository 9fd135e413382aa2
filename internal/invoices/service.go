package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/clients"
	"github.com/ledgerdesk/ledgerdesk/internal/mail"
	"github.com/ledgerdesk/ledgerdesk/internal/numbering"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
	"github.com/ledgerdesk/ledgerdesk/internal/stock"
)

// QuoteDueDays is the payment window given to invoices converted from quotes.
const QuoteDueDays = 7

// NumberPort allocates document numbers.
type NumberPort interface {
	Next(ctx context.Context, ownerID int64, kind numbering.Kind) (int64, error)
}

// StockPort keeps product stock in line with invoice items.
type StockPort interface {
	Sync(ctx context.Context, ownerID, invoiceID int64, lines []stock.Line) (stock.Result, error)
	Release(ctx context.Context, ownerID, invoiceID int64) (stock.Result, error)
}

// SettingsPort supplies per-owner document defaults.
type SettingsPort interface {
	ForOwner(ctx context.Context, ownerID int64) (settings.Settings, error)
}

// ClientPort resolves the billed client.
type ClientPort interface {
	Get(ctx context.Context, caller shared.Identity, id int64) (clients.Client, error)
}

// Ports groups the collaborators of Service.
type Ports struct {
	Numbers  NumberPort
	Stock    StockPort
	Settings SettingsPort
	Clients  ClientPort
	Mail     mail.Queue
	Notifier shared.ChangeNotifier
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	PublicBaseURL string
	Now           func() time.Time
}

// Service implements the invoice lifecycle.
type Service struct {
	repo     RepositoryPort
	ports    Ports
	validate *validator.Validate
	logger   *slog.Logger
	baseURL  string
	now      func() time.Time
}

// NewService constructs the invoice service.
func NewService(repo RepositoryPort, ports Ports, cfg ServiceConfig, logger *slog.Logger) *Service {
	if ports.Notifier == nil {
		ports.Notifier = shared.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		ports:    ports,
		validate: validator.New(),
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:      now,
	}
}

// Create issues a new invoice for the caller.
func (s *Service) Create(ctx context.Context, caller shared.Identity, input Input) (Invoice, error) {
	if err := caller.Require(); err != nil {
		return Invoice{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Invoice{}, err
	}
	if _, err := s.ports.Clients.Get(ctx, caller, input.ClientID); err != nil {
		return Invoice{}, err
	}
	defaults, err := s.ports.Settings.ForOwner(ctx, caller.UserID)
	if err != nil {
		return Invoice{}, fmt.Errorf("load settings: %w", err)
	}
	inv, err := s.build(input, defaults, Invoice{Status: StatusDraft})
	if err != nil {
		return Invoice{}, err
	}
	inv.PaymentStatus = DerivePaymentStatus(inv.AmountPaid, inv.Total)
	if inv.Status, err = SettleStatus(inv, input.Status); err != nil {
		return Invoice{}, err
	}
	number, err := s.ports.Numbers.Next(ctx, caller.UserID, numbering.KindInvoice)
	if err != nil {
		return Invoice{}, fmt.Errorf("allocate invoice number: %w", err)
	}
	now := s.now()
	inv.Number = number
	inv.PublicID = uuid.New()
	inv.CreatedBy = caller.UserID
	inv.AuditLog = []shared.AuditEntry{shared.NewAuditEntry(caller, "created", now, nil)}

	created, err := s.repo.Create(ctx, inv)
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	s.ports.Notifier.Changed(ctx, caller.UserID)
	if err := s.syncStock(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}

// build applies input and owner defaults on top of base and recomputes totals.
func (s *Service) build(input Input, defaults settings.Settings, base Invoice) (Invoice, error) {
	currency, err := money.NormalizeCurrency(input.Currency, defaults.DefaultCurrency)
	if err != nil {
		return Invoice{}, err
	}
	rate := defaults.DefaultTaxRate
	if input.TaxRate != nil {
		rate = *input.TaxRate
	}
	if input.Credit.IsNegative() {
		return Invoice{}, fmt.Errorf("%w: credit must not be negative", httpx.ErrValidation)
	}
	items, totals, err := ComputeTotals(input.Items, input.Discount, rate)
	if err != nil {
		return Invoice{}, err
	}
	inv := base
	inv.ClientID = input.ClientID
	inv.Date = input.Date.UTC()
	inv.Year = inv.Date.Year()
	if input.ExpiredDate != nil {
		inv.ExpiredDate = input.ExpiredDate.UTC()
	} else {
		inv.ExpiredDate = inv.Date.AddDate(0, 0, defaults.PaymentTermsDays)
	}
	if inv.ExpiredDate.Before(inv.Date) {
		return Invoice{}, fmt.Errorf("%w: expired date must not be before date", httpx.ErrValidation)
	}
	inv.Items = items
	inv.Currency = currency
	inv.SubTotal = totals.SubTotal
	inv.TaxRate = rate
	inv.TaxTotal = totals.TaxTotal
	inv.Discount = money.Round2(input.Discount)
	inv.Credit = money.Round2(input.Credit)
	inv.Total = totals.Total
	if input.Status != "" {
		inv.Status = input.Status
	}
	switch {
	case input.Notes != nil:
		inv.Notes = *input.Notes
	case base.ID == 0:
		inv.Notes = defaults.DefaultNotes
	}
	return inv, nil
}

func (s *Service) syncStock(ctx context.Context, inv Invoice) error {
	result, err := s.ports.Stock.Sync(ctx, inv.CreatedBy, inv.ID, StockLines(inv.Items))
	if err != nil {
		s.logger.Error("invoice stock sync failed", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		return fmt.Errorf("invoice %d saved but stock sync failed: %w", inv.ID, err)
	}
	if len(result.Skipped) > 0 {
		s.logger.Debug("invoice lines without product", slog.Int64("invoice_id", inv.ID), slog.Any("items", result.Skipped))
	}
	return nil
}

// Get returns one of the caller's invoices.
func (s *Service) Get(ctx context.Context, caller shared.Identity, id int64) (Invoice, error) {
	if err := caller.Require(); err != nil {
		return Invoice{}, err
	}
	return s.repo.Get(ctx, shared.OwnedBy(caller), id)
}

// List returns a page of the caller's invoices.
func (s *Service) List(ctx context.Context, caller shared.Identity, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	if err := caller.Require(); err != nil {
		return nil, shared.Pagination{}, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	filter.ListParams = filter.Normalize()
	scope := shared.OwnedBy(caller)
	if filter.IncludeRemoved {
		scope = scope.WithRemoved()
	}
	items, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list invoices: %w", err)
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update recomputes the invoice from input and applies the stock delta.
func (s *Service) Update(ctx context.Context, caller shared.Identity, id int64, input Input) (Invoice, error) {
	if err := caller.Require(); err != nil {
		return Invoice{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Invoice{}, err
	}
	scope := shared.OwnedBy(caller)
	existing, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return Invoice{}, err
	}
	if input.ClientID != existing.ClientID {
		if _, err := s.ports.Clients.Get(ctx, caller, input.ClientID); err != nil {
			return Invoice{}, err
		}
	}
	defaults, err := s.ports.Settings.ForOwner(ctx, caller.UserID)
	if err != nil {
		return Invoice{}, fmt.Errorf("load settings: %w", err)
	}
	if input.Currency == "" {
		input.Currency = existing.Currency
	}
	if input.TaxRate == nil {
		rate := existing.TaxRate
		input.TaxRate = &rate
	}
	inv, err := s.build(input, defaults, existing)
	if err != nil {
		return Invoice{}, err
	}
	inv.PaymentStatus = DerivePaymentStatus(inv.AmountPaid, inv.Total)
	if inv.Status, err = SettleStatus(inv, input.Status); err != nil {
		return Invoice{}, err
	}
	entry := shared.NewAuditEntry(caller, "updated", s.now(), map[string]any{
		"status": inv.Status,
		"total":  inv.Total.StringFixed(2),
	})
	updated, err := s.repo.Update(ctx, scope, inv, entry)
	if err != nil {
		return Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	s.ports.Notifier.Changed(ctx, caller.UserID)
	if err := s.syncStock(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete soft-deletes the invoice and restores the stock it consumed.
func (s *Service) Delete(ctx context.Context, caller shared.Identity, id int64) error {
	if err := caller.Require(); err != nil {
		return err
	}
	entry := shared.NewAuditEntry(caller, "removed", s.now(), nil)
	if err := s.repo.SoftDelete(ctx, shared.OwnedBy(caller), id, entry); err != nil {
		return err
	}
	s.ports.Notifier.Changed(ctx, caller.UserID)
	if _, err := s.ports.Stock.Release(ctx, caller.UserID, id); err != nil {
		s.logger.Error("invoice stock release failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		return fmt.Errorf("invoice %d removed but stock release failed: %w", id, err)
	}
	return nil
}

// Send moves a draft invoice to sent and queues the email to the client. If
// the email cannot be queued the invoice returns to draft.
func (s *Service) Send(ctx context.Context, caller shared.Identity, id int64) (Invoice, error) {
	if err := caller.Require(); err != nil {
		return Invoice{}, err
	}
	scope := shared.OwnedBy(caller)
	now := s.now()
	sent, err := s.repo.Transition(ctx, scope, id, []Status{StatusDraft}, StatusSent, shared.NewAuditEntry(caller, "sent", now, nil))
	if err != nil {
		return Invoice{}, err
	}
	msg, err := s.notice(ctx, sent)
	if err == nil {
		err = s.ports.Mail.EnqueueEmail(ctx, msg)
	}
	if err != nil {
		revert := shared.NewAuditEntry(caller, "send_failed", now, map[string]any{"error": err.Error()})
		if _, rerr := s.repo.Transition(ctx, scope, id, []Status{StatusSent}, StatusDraft, revert); rerr != nil {
			s.logger.Error("revert invoice send", slog.Int64("invoice_id", id), slog.Any("error", rerr))
		}
		return Invoice{}, fmt.Errorf("queue invoice email: %w", err)
	}
	s.ports.Notifier.Changed(ctx, caller.UserID)
	return sent, nil
}

func (s *Service) notice(ctx context.Context, inv Invoice) (mail.Message, error) {
	defaults, err := s.ports.Settings.ForOwner(ctx, inv.CreatedBy)
	if err != nil {
		return mail.Message{}, err
	}
	n := mail.DocumentNotice{
		Kind:        "invoice",
		Number:      inv.Number,
		Year:        inv.Year,
		CompanyName: defaults.CompanyName,
		Currency:    inv.Currency,
		Total:       inv.Total,
		Outstanding: inv.Outstanding(),
		DueDate:     inv.ExpiredDate,
		Link:        s.PublicLink(inv),
	}
	if inv.Client != nil {
		n.ClientName = inv.Client.Name
		n.ClientEmail = inv.Client.Email
	}
	msg := mail.Compose(n)
	return msg, msg.Validate()
}

// PublicLink returns the unauthenticated URL of the invoice.
func (s *Service) PublicLink(inv Invoice) string {
	return s.baseURL + "/public/invoices/" + inv.PublicID.String()
}

// RecordPayment adds a payment. Overpayment is accepted; once the paid
// amount reaches the total the invoice becomes paid, even when overdue.
func (s *Service) RecordPayment(ctx context.Context, caller shared.Identity, id int64, input PaymentInput) (Invoice, error) {
	if err := caller.Require(); err != nil {
		return Invoice{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Invoice{}, err
	}
	amount := money.Round2(input.Amount)
	if !amount.IsPositive() {
		return Invoice{}, ErrInvalidAmount
	}
	entry := shared.NewAuditEntry(caller, "payment", s.now(), map[string]any{
		"amount": amount.StringFixed(2),
		"note":   input.Note,
	})
	inv, err := s.repo.RecordPayment(ctx, shared.OwnedBy(caller), id, amount, entry)
	if err != nil {
		return Invoice{}, err
	}
	s.ports.Notifier.Changed(ctx, caller.UserID)
	return inv, nil
}

// SweepOverdue marks every pending or sent invoice past its due date as overdue
// and returns how many changed.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.SweepOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue invoices: %w", err)
	}
	return n, nil
}

// CreateFromQuote issues a draft invoice carrying the quote's content verbatim.
func (s *Service) CreateFromQuote(ctx context.Context, caller shared.Identity, src QuoteSource) (Invoice, error) {
	if err := caller.Require(); err != nil {
		return Invoice{}, err
	}
	number, err := s.ports.Numbers.Next(ctx, caller.UserID, numbering.KindInvoice)
	if err != nil {
		return Invoice{}, fmt.Errorf("allocate invoice number: %w", err)
	}
	now := s.now().UTC()
	quoteID := src.QuoteID
	inv := Invoice{
		PublicID:         uuid.New(),
		Number:           number,
		Year:             now.Year(),
		ClientID:         src.ClientID,
		Date:             now,
		ExpiredDate:      now.AddDate(0, 0, QuoteDueDays),
		Items:            src.Items,
		Currency:         src.Currency,
		SubTotal:         src.SubTotal,
		TaxRate:          src.TaxRate,
		TaxTotal:         src.TaxTotal,
		Discount:         src.Discount,
		Credit:           src.Credit,
		Total:            src.Total,
		AmountPaid:       decimal.Zero,
		Status:           StatusDraft,
		PaymentStatus:    DerivePaymentStatus(decimal.Zero, src.Total),
		Notes:            src.Notes,
		ConvertedQuoteID: &quoteID,
		CreatedBy:        caller.UserID,
		AuditLog: []shared.AuditEntry{shared.NewAuditEntry(caller, "created", now, map[string]any{
			"fromQuote": src.QuoteID,
		})},
	}
	created, err := s.repo.Create(ctx, inv)
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice from quote: %w", err)
	}
	s.ports.Notifier.Changed(ctx, caller.UserID)
	if err := s.syncStock(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}

// GetPublic returns the public projection of an invoice.
func (s *Service) GetPublic(ctx context.Context, publicID string) (PublicView, error) {
	inv, err := s.byPublicID(ctx, publicID)
	if err != nil {
		return PublicView{}, err
	}
	return inv.ToPublic(), nil
}

// PayPublic settles the outstanding balance on behalf of the client.
func (s *Service) PayPublic(ctx context.Context, publicID string) (PublicView, error) {
	inv, err := s.byPublicID(ctx, publicID)
	if err != nil {
		return PublicView{}, err
	}
	outstanding := inv.Outstanding()
	if !outstanding.IsPositive() {
		return PublicView{}, ErrAlreadyPaid
	}
	entry := shared.AuditEntry{Action: "public_payment", At: s.now().UTC(), Changes: map[string]any{
		"amount": outstanding.StringFixed(2),
	}}
	paid, err := s.repo.RecordPayment(ctx, shared.Scope{OwnerID: inv.CreatedBy}, inv.ID, outstanding, entry)
	if err != nil {
		return PublicView{}, err
	}
	s.ports.Notifier.Changed(ctx, inv.CreatedBy)
	return paid.ToPublic(), nil
}

func (s *Service) byPublicID(ctx context.Context, publicID string) (Invoice, error) {
	id, err := uuid.Parse(publicID)
	if err != nil {
		return Invoice{}, ErrNotFound
	}
	return s.repo.GetByPublicID(ctx, id)
}

// ListForClient returns the invoices a client sees in the portal.
func (s *Service) ListForClient(ctx context.Context, ownerID, clientID int64) ([]PublicView, error) {
	items, err := s.repo.ListForClient(ctx, ownerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client invoices: %w", err)
	}
	views := make([]PublicView, 0, len(items))
	for _, inv := range items {
		views = append(views, inv.ToPublic())
	}
	return views, nil
}
