package boardlot

import (
	"fmt"

	"tradejournal/internal/ports"
)

// band maps a unit-price upper bound (inclusive) to the mandatory minimum
// tradable share increment. Lower-priced shares trade in larger lots.
type band struct {
	maxPrice float64
	lot      int64
}

// Lot table: anchored on the exchange's published points (0.01 and below
// trades in millions, above 2000 trades in fives); bands in between step
// down monotonically.
var bands = []band{
	{0.01, 1_000_000},
	{0.05, 200_000},
	{0.25, 20_000},
	{0.50, 10_000},
	{5.00, 1_000},
	{50.00, 100},
	{2000.00, 10},
}

// topLot applies above the last band boundary.
const topLot int64 = 5

// LotSize returns the board lot for a given unit price.
func LotSize(unitPrice float64) (int64, error) {
	if unitPrice <= 0 {
		return 0, fmt.Errorf("unit price must be positive, got %v: %w", unitPrice, ports.ErrInvalidArgument)
	}
	for _, b := range bands {
		if unitPrice <= b.maxPrice {
			return b.lot, nil
		}
	}
	return topLot, nil
}

// ValidateQuantity reports whether qty is a whole multiple of the lot.
func ValidateQuantity(qty, lot int64) bool {
	if qty <= 0 || lot <= 0 {
		return false
	}
	return qty%lot == 0
}

// RoundDownToLot floors qty to the nearest lot multiple. A quantity below
// one lot rounds up to a single lot rather than to zero, so callers always
// get a tradable size back.
func RoundDownToLot(qty, lot int64) int64 {
	if lot <= 0 {
		return 0
	}
	rounded := (qty / lot) * lot
	if rounded <= 0 {
		return lot
	}
	return rounded
}
