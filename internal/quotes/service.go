package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/mail"
	"github.com/ledgerdesk/ledgerdesk/internal/numbering"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// InvoicePort creates the invoice for a converted quote.
type InvoicePort interface {
	CreateFromQuote(ctx context.Context, caller shared.Identity, src invoices.QuoteSource) (invoices.Invoice, error)
}

// Ports groups the collaborators of Service.
type Ports struct {
	Numbers  invoices.NumberPort
	Settings invoices.SettingsPort
	Clients  invoices.ClientPort
	Invoices InvoicePort
	Mail     mail.Queue
}

// Service implements the quote workflow.
type Service struct {
	repo     RepositoryPort
	ports    Ports
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the quote service. now may be nil.
func NewService(repo RepositoryPort, ports Ports, logger *slog.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, ports: ports, validate: validator.New(), logger: logger, now: now}
}

func (s *Service) apply(input Input, defaults settings.Settings, base Quote) (Quote, error) {
	currency, err := money.NormalizeCurrency(input.Currency, defaults.DefaultCurrency)
	if err != nil {
		return Quote{}, err
	}
	rate := defaults.DefaultTaxRate
	if input.TaxRate != nil {
		rate = *input.TaxRate
	}
	if input.Credit.IsNegative() {
		return Quote{}, fmt.Errorf("%w: credit must not be negative", httpx.ErrValidation)
	}
	items, totals, err := invoices.ComputeTotals(input.Items, input.Discount, rate)
	if err != nil {
		return Quote{}, err
	}
	q := base
	q.ClientID = input.ClientID
	q.Date = input.Date.UTC()
	q.Year = q.Date.Year()
	if input.ExpiredDate != nil {
		q.ExpiredDate = input.ExpiredDate.UTC()
	} else {
		q.ExpiredDate = q.Date.AddDate(0, 0, defaults.PaymentTermsDays)
	}
	q.Items = items
	q.Currency = currency
	q.SubTotal = totals.SubTotal
	q.TaxRate = rate
	q.TaxTotal = totals.TaxTotal
	q.Discount = money.Round2(input.Discount)
	q.Credit = money.Round2(input.Credit)
	q.Total = totals.Total
	if input.Notes != nil {
		q.Notes = *input.Notes
	} else if base.ID == 0 {
		q.Notes = defaults.DefaultNotes
	}
	return q, nil
}

// Create drafts a quote for the caller.
func (s *Service) Create(ctx context.Context, caller shared.Identity, input Input) (Quote, error) {
	if err := caller.Require(); err != nil {
		return Quote{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Quote{}, err
	}
	if _, err := s.ports.Clients.Get(ctx, caller, input.ClientID); err != nil {
		return Quote{}, err
	}
	defaults, err := s.ports.Settings.ForOwner(ctx, caller.UserID)
	if err != nil {
		return Quote{}, fmt.Errorf("load settings: %w", err)
	}
	q, err := s.apply(input, defaults, Quote{Status: StatusDraft})
	if err != nil {
		return Quote{}, err
	}
	number, err := s.ports.Numbers.Next(ctx, caller.UserID, numbering.KindQuote)
	if err != nil {
		return Quote{}, fmt.Errorf("allocate quote number: %w", err)
	}
	q.Number = number
	q.CreatedBy = caller.UserID
	q.AuditLog = []shared.AuditEntry{shared.NewAuditEntry(caller, "created", s.now(), nil)}
	created, err := s.repo.Create(ctx, q)
	if err != nil {
		return Quote{}, fmt.Errorf("create quote: %w", err)
	}
	return created, nil
}

// Get returns one of the caller's quotes.
func (s *Service) Get(ctx context.Context, caller shared.Identity, id int64) (Quote, error) {
	if err := caller.Require(); err != nil {
		return Quote{}, err
	}
	return s.repo.Get(ctx, shared.OwnedBy(caller), id)
}

// List returns a page of the caller's quotes.
func (s *Service) List(ctx context.Context, caller shared.Identity, filter ListFilter) ([]Quote, shared.Pagination, error) {
	if err := caller.Require(); err != nil {
		return nil, shared.Pagination{}, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	filter.ListParams = filter.Normalize()
	items, total, err := s.repo.List(ctx, shared.OwnedBy(caller), filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list quotes: %w", err)
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update edits a draft or sent quote.
func (s *Service) Update(ctx context.Context, caller shared.Identity, id int64, input Input) (Quote, error) {
	if err := caller.Require(); err != nil {
		return Quote{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Quote{}, err
	}
	scope := shared.OwnedBy(caller)
	existing, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return Quote{}, err
	}
	if existing.Status != StatusDraft && existing.Status != StatusSent {
		return Quote{}, ErrNotEditable
	}
	if input.ClientID != existing.ClientID {
		if _, err := s.ports.Clients.Get(ctx, caller, input.ClientID); err != nil {
			return Quote{}, err
		}
	}
	defaults, err := s.ports.Settings.ForOwner(ctx, caller.UserID)
	if err != nil {
		return Quote{}, fmt.Errorf("load settings: %w", err)
	}
	if input.Currency == "" {
		input.Currency = existing.Currency
	}
	if input.TaxRate == nil {
		rate := existing.TaxRate
		input.TaxRate = &rate
	}
	q, err := s.apply(input, defaults, existing)
	if err != nil {
		return Quote{}, err
	}
	entry := shared.NewAuditEntry(caller, "updated", s.now(), map[string]any{"total": q.Total.StringFixed(2)})
	return s.repo.Update(ctx, scope, q, entry)
}

// Delete soft-deletes the quote.
func (s *Service) Delete(ctx context.Context, caller shared.Identity, id int64) error {
	if err := caller.Require(); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, shared.OwnedBy(caller), id, shared.NewAuditEntry(caller, "removed", s.now(), nil))
}

// Send moves a draft quote to sent and queues the email to the client.
func (s *Service) Send(ctx context.Context, caller shared.Identity, id int64) (Quote, error) {
	if err := caller.Require(); err != nil {
		return Quote{}, err
	}
	scope := shared.OwnedBy(caller)
	now := s.now()
	sent, err := s.repo.Transition(ctx, scope, id, []Status{StatusDraft}, StatusSent, shared.NewAuditEntry(caller, "sent", now, nil))
	if err != nil {
		return Quote{}, err
	}
	msg, err := s.notice(ctx, sent)
	if err == nil {
		err = s.ports.Mail.EnqueueEmail(ctx, msg)
	}
	if err != nil {
		revert := shared.NewAuditEntry(caller, "send_failed", now, map[string]any{"error": err.Error()})
		if _, rerr := s.repo.Transition(ctx, scope, id, []Status{StatusSent}, StatusDraft, revert); rerr != nil {
			s.logger.Error("revert quote send", slog.Int64("quote_id", id), slog.Any("error", rerr))
		}
		return Quote{}, fmt.Errorf("queue quote email: %w", err)
	}
	return sent, nil
}

func (s *Service) notice(ctx context.Context, q Quote) (mail.Message, error) {
	defaults, err := s.ports.Settings.ForOwner(ctx, q.CreatedBy)
	if err != nil {
		return mail.Message{}, err
	}
	n := mail.DocumentNotice{
		Kind:        "quote",
		Number:      q.Number,
		Year:        q.Year,
		CompanyName: defaults.CompanyName,
		Currency:    q.Currency,
		Total:       q.Total,
		DueDate:     q.ExpiredDate,
	}
	if q.Client != nil {
		n.ClientName = q.Client.Name
		n.ClientEmail = q.Client.Email
	}
	msg := mail.Compose(n)
	return msg, msg.Validate()
}

// Accept records the client's acceptance of a sent quote.
func (s *Service) Accept(ctx context.Context, caller shared.Identity, id int64) (Quote, error) {
	return s.decide(ctx, caller, id, StatusAccepted)
}

// Reject records the client's rejection of a sent quote.
func (s *Service) Reject(ctx context.Context, caller shared.Identity, id int64) (Quote, error) {
	return s.decide(ctx, caller, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, caller shared.Identity, id int64, to Status) (Quote, error) {
	if err := caller.Require(); err != nil {
		return Quote{}, err
	}
	entry := shared.NewAuditEntry(caller, string(to), s.now(), nil)
	return s.repo.Transition(ctx, shared.OwnedBy(caller), id, []Status{StatusSent}, to, entry)
}

// Convert turns the quote into a draft invoice. A quote converts at most
// once; a failed invoice creation leaves the quote as it was.
func (s *Service) Convert(ctx context.Context, caller shared.Identity, id int64) (ConversionResult, error) {
	if err := caller.Require(); err != nil {
		return ConversionResult{}, err
	}
	scope := shared.OwnedBy(caller)
	existing, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return ConversionResult{}, err
	}
	if existing.Status == StatusConverted {
		return ConversionResult{}, ErrAlreadyConverted
	}
	now := s.now()
	claimed, err := s.repo.Claim(ctx, scope, id, shared.NewAuditEntry(caller, "converted", now, nil))
	if err != nil {
		return ConversionResult{}, err
	}
	inv, err := s.ports.Invoices.CreateFromQuote(ctx, caller, claimed.Source())
	if err != nil && inv.ID == 0 {
		revert := shared.NewAuditEntry(caller, "convert_failed", now, map[string]any{"error": err.Error()})
		if uerr := s.repo.Unclaim(ctx, scope, id, existing.Status, revert); uerr != nil {
			s.logger.Error("revert quote conversion", slog.Int64("quote_id", id), slog.Any("error", uerr))
		}
		return ConversionResult{}, fmt.Errorf("convert quote: %w", err)
	}
	if err != nil {
		s.logger.Warn("converted invoice stock sync failed", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
	}
	linked, err := s.repo.LinkInvoice(ctx, scope, id, inv.ID)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("link converted invoice: %w", err)
	}
	return ConversionResult{Quote: linked, Invoice: inv}, nil
}
