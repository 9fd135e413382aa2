package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
	"github.com/ledgerdesk/ledgerdesk/internal/shared"
)

// Service coordinates product use cases.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService constructs a product service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) check(input Input) (Input, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.SKU = strings.TrimSpace(input.SKU)
	if err := s.validate.Struct(input); err != nil {
		return input, err
	}
	if input.Price.IsNegative() {
		return input, fmt.Errorf("%w: price must not be negative", httpx.ErrValidation)
	}
	input.Price = input.Price.Round(2)
	return input, nil
}

// Create adds a product to the caller's catalogue.
func (s *Service) Create(ctx context.Context, caller shared.Identity, input Input) (Product, error) {
	if err := caller.Require(); err != nil {
		return Product{}, err
	}
	input, err := s.check(input)
	if err != nil {
		return Product{}, err
	}
	product, err := s.repo.Create(ctx, Product{
		Name:        input.Name,
		SKU:         input.SKU,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		CreatedBy:   caller.UserID,
	})
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, caller shared.Identity, id int64) (Product, error) {
	if err := caller.Require(); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, shared.OwnedBy(caller), id)
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, caller shared.Identity, filter ListFilter) ([]Product, shared.Pagination, error) {
	if err := caller.Require(); err != nil {
		return nil, shared.Pagination{}, err
	}
	filter.ListParams = filter.Normalize()
	items, total, err := s.repo.List(ctx, shared.OwnedBy(caller), filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list products: %w", err)
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update replaces editable fields. Setting stock here is a manual recount.
func (s *Service) Update(ctx context.Context, caller shared.Identity, id int64, input Input) (Product, error) {
	if err := caller.Require(); err != nil {
		return Product{}, err
	}
	input, err := s.check(input)
	if err != nil {
		return Product{}, err
	}
	scope := shared.OwnedBy(caller)
	existing, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return Product{}, err
	}
	existing.Name = input.Name
	existing.SKU = input.SKU
	existing.Description = input.Description
	existing.Price = input.Price
	existing.Stock = input.Stock
	return s.repo.Update(ctx, scope, existing)
}

// Delete soft-deletes the product.
func (s *Service) Delete(ctx context.Context, caller shared.Identity, id int64) error {
	if err := caller.Require(); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, shared.OwnedBy(caller), id)
}
