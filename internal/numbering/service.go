// Package numbering issues per-owner sequential document numbers.
package numbering

import (
	"context"
	"fmt"

	"github.com/ledgerdesk/ledgerdesk/internal/platform/httpx"
)

// Kind selects an independent number sequence.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindQuote   Kind = "quote"
)

// DefaultStart is used when an owner has no documents and no configured start.
const DefaultStart int64 = 1000

// RepositoryPort abstracts the counter store.
type RepositoryPort interface {
	// Increment bumps an existing counter. ok is false when none exists yet.
	Increment(ctx context.Context, ownerID int64, kind Kind) (value int64, ok bool, err error)
	// Seed returns the first number for a new counter: max existing + 1, else the
	// configured start. Zero means neither exists.
	Seed(ctx context.Context, ownerID int64, kind Kind) (int64, error)
	// Initialize creates the counter at seed, or increments it if a concurrent
	// caller created it first.
	Initialize(ctx context.Context, ownerID int64, kind Kind, seed int64) (int64, error)
}

// Service hands out numbers.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the numbering service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Next atomically reserves the next number for the owner's sequence.
func (s *Service) Next(ctx context.Context, ownerID int64, kind Kind) (int64, error) {
	if kind != KindInvoice && kind != KindQuote {
		return 0, fmt.Errorf("%w: unknown number sequence %q", httpx.ErrValidation, kind)
	}
	value, ok, err := s.repo.Increment(ctx, ownerID, kind)
	if err != nil {
		return 0, fmt.Errorf("increment %s counter: %w", kind, err)
	}
	if ok {
		return value, nil
	}
	seed, err := s.repo.Seed(ctx, ownerID, kind)
	if err != nil {
		return 0, fmt.Errorf("seed %s counter: %w", kind, err)
	}
	if seed <= 0 {
		seed = DefaultStart
	}
	value, err = s.repo.Initialize(ctx, ownerID, kind, seed)
	if err != nil {
		return 0, fmt.Errorf("initialize %s counter: %w", kind, err)
	}
	return value, nil
}
