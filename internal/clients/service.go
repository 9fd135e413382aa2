package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Service coordinates client use cases.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	notifier shared.ChangeNotifier
}

// NewService constructs a client service.
func NewService(repo RepositoryPort, notifier shared.ChangeNotifier) *Service {
	if notifier == nil {
		notifier = shared.NopNotifier{}
	}
	return &Service{repo: repo, validate: validator.New(), notifier: notifier}
}

func normalize(input Input) Input {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	if input.Status == "" {
		input.Status = StatusActive
	}
	return input
}

// Create registers a client for the caller.
func (s *Service) Create(ctx context.Context, caller shared.Identity, input Input) (Client, error) {
	if err := caller.Require(); err != nil {
		return Client{}, err
	}
	input = normalize(input)
	if err := s.validate.Struct(input); err != nil {
		return Client{}, err
	}
	client, err := s.repo.Create(ctx, Client{
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		Status:      input.Status,
		PortalToken: uuid.New(),
		CreatedBy:   caller.UserID,
	})
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	s.notifier.Changed(ctx, caller.UserID)
	return client, nil
}

// Get returns one of the caller's clients.
func (s *Service) Get(ctx context.Context, caller shared.Identity, id int64) (Client, error) {
	if err := caller.Require(); err != nil {
		return Client{}, err
	}
	return s.repo.Get(ctx, shared.OwnedBy(caller), id)
}

// List returns a page of the caller's clients.
func (s *Service) List(ctx context.Context, caller shared.Identity, filter ListFilter) ([]Client, shared.Pagination, error) {
	if err := caller.Require(); err != nil {
		return nil, shared.Pagination{}, err
	}
	filter.ListParams = filter.Normalize()
	items, total, err := s.repo.List(ctx, shared.OwnedBy(caller), filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list clients: %w", err)
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update replaces the client's editable fields.
func (s *Service) Update(ctx context.Context, caller shared.Identity, id int64, input Input) (Client, error) {
	if err := caller.Require(); err != nil {
		return Client{}, err
	}
	input = normalize(input)
	if err := s.validate.Struct(input); err != nil {
		return Client{}, err
	}
	scope := shared.OwnedBy(caller)
	existing, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return Client{}, err
	}
	existing.Name = input.Name
	existing.Email = input.Email
	existing.Phone = input.Phone
	existing.Address = input.Address
	existing.Status = input.Status
	updated, err := s.repo.Update(ctx, scope, existing)
	if err != nil {
		return Client{}, err
	}
	s.notifier.Changed(ctx, caller.UserID)
	return updated, nil
}

// Delete soft-deletes the client. Its invoices keep referencing it.
func (s *Service) Delete(ctx context.Context, caller shared.Identity, id int64) error {
	if err := caller.Require(); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, shared.OwnedBy(caller), id); err != nil {
		return err
	}
	s.notifier.Changed(ctx, caller.UserID)
	return nil
}

// ByPortalToken resolves a client for the public portal.
func (s *Service) ByPortalToken(ctx context.Context, token string) (Client, error) {
	parsed, err := uuid.Parse(token)
	if err != nil {
		return Client{}, ErrNotFound
	}
	return s.repo.FindByPortalToken(ctx, parsed)
}
