package expenses

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/money"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Service coordinates expense use cases.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	notifier shared.ChangeNotifier
}

// NewService constructs an expense service.
func NewService(repo RepositoryPort, notifier shared.ChangeNotifier) *Service {
	if notifier == nil {
		notifier = shared.NopNotifier{}
	}
	return &Service{repo: repo, validate: validator.New(), notifier: notifier}
}

func (s *Service) check(input Input) (Input, error) {
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate.Struct(input); err != nil {
		return input, err
	}
	if !input.Amount.IsPositive() {
		return input, fmt.Errorf("%w: amount must be greater than 0", httpx.ErrValidation)
	}
	input.Amount = money.Round2(input.Amount)
	return input, nil
}

// Create records an expense.
func (s *Service) Create(ctx context.Context, caller shared.Identity, input Input) (Expense, error) {
	if err := caller.Require(); err != nil {
		return Expense{}, err
	}
	input, err := s.check(input)
	if err != nil {
		return Expense{}, err
	}
	e, err := s.repo.Create(ctx, Expense{
		Description: input.Description,
		Amount:      input.Amount,
		Category:    input.Category,
		Date:        input.Date.UTC(),
		ReceiptRef:  input.ReceiptRef,
		CreatedBy:   caller.UserID,
	})
	if err != nil {
		return Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.notifier.Changed(ctx, caller.UserID)
	return e, nil
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, caller shared.Identity, id int64) (Expense, error) {
	if err := caller.Require(); err != nil {
		return Expense{}, err
	}
	return s.repo.Get(ctx, shared.OwnedBy(caller), id)
}

// List returns a page of expenses.
func (s *Service) List(ctx context.Context, caller shared.Identity, filter ListFilter) ([]Expense, shared.Pagination, error) {
	if err := caller.Require(); err != nil {
		return nil, shared.Pagination{}, err
	}
	filter.ListParams = filter.Normalize()
	items, total, err := s.repo.List(ctx, shared.OwnedBy(caller), filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list expenses: %w", err)
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update replaces editable fields.
func (s *Service) Update(ctx context.Context, caller shared.Identity, id int64, input Input) (Expense, error) {
	if err := caller.Require(); err != nil {
		return Expense{}, err
	}
	input, err := s.check(input)
	if err != nil {
		return Expense{}, err
	}
	scope := shared.OwnedBy(caller)
	existing, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return Expense{}, err
	}
	existing.Description = input.Description
	existing.Amount = input.Amount
	existing.Category = input.Category
	existing.Date = input.Date.UTC()
	existing.ReceiptRef = input.ReceiptRef
	updated, err := s.repo.Update(ctx, scope, existing)
	if err != nil {
		return Expense{}, err
	}
	s.notifier.Changed(ctx, caller.UserID)
	return updated, nil
}

// Delete soft-deletes the expense.
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
