// Package portal serves the unauthenticated surface: public invoice links and
// the per-client portal reached through the client's portal token.
package portal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerdesk/ledgerdesk/internal/clients"
	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
)

// InvoicePort exposes the public invoice operations.
type InvoicePort interface {
	GetPublic(ctx context.Context, publicID string) (invoices.PublicView, error)
	PayPublic(ctx context.Context, publicID string) (invoices.PublicView, error)
	ListForClient(ctx context.Context, ownerID, clientID int64) ([]invoices.PublicView, error)
}

// ClientPort resolves portal tokens.
type ClientPort interface {
	ByPortalToken(ctx context.Context, token string) (clients.Client, error)
}

// SettingsPort supplies the issuing company's details.
type SettingsPort interface {
	ForOwner(ctx context.Context, ownerID int64) (settings.Settings, error)
}

// View is what a client sees in the portal.
type View struct {
	CompanyName string                `json:"companyName"`
	ClientName  string                `json:"clientName"`
	Invoices    []invoices.PublicView `json:"invoices"`
	Outstanding decimal.Decimal       `json:"outstanding"`
}

// Service composes the public surface.
type Service struct {
	invoices InvoicePort
	clients  ClientPort
	settings SettingsPort
}

// NewService constructs the portal service.
func NewService(inv InvoicePort, cl ClientPort, st SettingsPort) *Service {
	return &Service{invoices: inv, clients: cl, settings: st}
}

// Invoice returns the public view of one invoice.
func (s *Service) Invoice(ctx context.Context, publicID string) (invoices.PublicView, error) {
	return s.invoices.GetPublic(ctx, publicID)
}

// Pay settles an invoice's outstanding balance.
func (s *Service) Pay(ctx context.Context, publicID string) (invoices.PublicView, error) {
	return s.invoices.PayPublic(ctx, publicID)
}

// Portal lists the issued invoices of the client owning token.
func (s *Service) Portal(ctx context.Context, token string) (View, error) {
	client, err := s.clients.ByPortalToken(ctx, token)
	if err != nil {
		return View{}, err
	}
	list, err := s.invoices.ListForClient(ctx, client.CreatedBy, client.ID)
	if err != nil {
		return View{}, err
	}
	company, err := s.settings.ForOwner(ctx, client.CreatedBy)
	if err != nil {
		return View{}, fmt.Errorf("load settings: %w", err)
	}
	view := View{CompanyName: company.CompanyName, ClientName: client.Name, Invoices: list, Outstanding: decimal.Zero}
	for _, inv := range list {
		view.Outstanding = view.Outstanding.Add(inv.Outstanding)
	}
	return view, nil
}
