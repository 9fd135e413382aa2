package stock

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Direction of a stock adjustment.
type Direction int

const (
	// Deduct removes quantities from stock (sale).
	Deduct Direction = iota
	// Restore adds quantities back (cancellation).
	Restore
)

func (d Direction) sign() int64 {
	if d == Restore {
		return 1
	}
	return -1
}

// Line is the part of an invoice line item that affects stock. Lines are
// matched to products by ProductID when set, otherwise by exact Name.
type Line struct {
	ProductID int64
	Name      string
	Quantity  decimal.Decimal
}

// Units returns the whole-unit quantity applied to stock.
func (l Line) Units() int64 {
	return l.Quantity.Round(0).IntPart()
}

// Result summarises an adjustment.
type Result struct {
	Applied map[int64]int64 `json:"applied"`
	Skipped []string        `json:"skipped,omitempty"`
}

// ErrProductNotResolved is returned by repositories when no product matches a line.
var ErrProductNotResolved = errors.New("stock: product not resolved")
