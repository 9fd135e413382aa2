// Package stock keeps product stock counts in step with invoice line items.
package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Service adjusts product stock for invoice lines.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the stock service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Adjust applies each line once in the given direction. Lines that match no
// product are skipped and reported, not treated as errors.
func (s *Service) Adjust(ctx context.Context, ownerID int64, lines []Line, dir Direction) (Result, error) {
	result := Result{Applied: make(map[int64]int64)}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		demand, skipped, err := s.resolve(ctx, tx, ownerID, lines)
		if err != nil {
			return err
		}
		result.Skipped = skipped
		for productID, units := range demand {
			delta := dir.sign() * units
			if err := tx.AddStock(ctx, ownerID, productID, delta); err != nil {
				return fmt.Errorf("adjust stock for product %d: %w", productID, err)
			}
			result.Applied[productID] = delta
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// Sync brings stock in line with what the invoice's lines now demand. Only
// the difference from what was previously deducted for the invoice is applied.
func (s *Service) Sync(ctx context.Context, ownerID, invoiceID int64, lines []Line) (Result, error) {
	result := Result{Applied: make(map[int64]int64)}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		demand, skipped, err := s.resolve(ctx, tx, ownerID, lines)
		if err != nil {
			return err
		}
		result.Skipped = skipped
		applied, err := tx.Ledger(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("load stock ledger: %w", err)
		}
		touched := make(map[int64]struct{}, len(demand)+len(applied))
		for id := range demand {
			touched[id] = struct{}{}
		}
		for id := range applied {
			touched[id] = struct{}{}
		}
		for productID := range touched {
			want, had := demand[productID], applied[productID]
			if want == had {
				continue
			}
			delta := had - want
			if err := tx.AddStock(ctx, ownerID, productID, delta); err != nil {
				return fmt.Errorf("adjust stock for product %d: %w", productID, err)
			}
			if err := tx.SetLedger(ctx, invoiceID, productID, want); err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
			result.Applied[productID] = delta
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// Release restores everything the invoice deducted.
func (s *Service) Release(ctx context.Context, ownerID, invoiceID int64) (Result, error) {
	result := Result{Applied: make(map[int64]int64)}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := tx.Ledger(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("load stock ledger: %w", err)
		}
		for productID, units := range applied {
			if err := tx.AddStock(ctx, ownerID, productID, units); err != nil {
				return fmt.Errorf("restore stock for product %d: %w", productID, err)
			}
			result.Applied[productID] = units
		}
		return tx.ClearLedger(ctx, invoiceID)
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (s *Service) resolve(ctx context.Context, tx TxRepository, ownerID int64, lines []Line) (map[int64]int64, []string, error) {
	demand := make(map[int64]int64)
	var skipped []string
	for _, line := range lines {
		units := line.Units()
		if units == 0 {
			continue
		}
		productID, err := tx.ResolveProduct(ctx, ownerID, line)
		if errors.Is(err, ErrProductNotResolved) {
			s.logger.Warn("stock line matches no product",
				slog.Int64("owner_id", ownerID),
				slog.Int64("product_id", line.ProductID),
				slog.String("item_name", line.Name))
			skipped = append(skipped, line.Name)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("resolve product %q: %w", line.Name, err)
		}
		demand[productID] += units
	}
	return demand, skipped, nil
}
