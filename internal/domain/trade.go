package domain

import (
	"fmt"
	"time"
)

// Trade represents a single journaled position, open or closed.
// Partial closes produce a separate closed slice with ParentID set; the
// remaining open trade keeps its original entry attributes.
type Trade struct {
	ID          int64       // Unique identifier (assigned by the repository)
	PortfolioID int64       // Owning portfolio
	ParentID    int64       // Open trade this closed slice was split from (0 if none)
	Symbol      string      // Instrument identifier (e.g., "JFC", "BTCUSDT")
	Side        TradeSide   // long or short
	Status      TradeStatus // open or closed
	EntryPrice  float64     // Price at which the position was entered
	Quantity    float64     // Current size of the position
	ExitPrice   float64     // Price at which the position was exited (0 while open)
	RealizedPnL float64     // Fee-adjusted profit/loss, set on close
	EntryTime   time.Time   // Timestamp of entry
	ExitTime    time.Time   // Timestamp of exit (zero value while open)
}

// NewTrade is the single constructor for open trades. All trade records
// enter the system through it so the field invariants hold everywhere.
func NewTrade(portfolioID int64, symbol string, side TradeSide, quantity, entryPrice float64, entryTime time.Time) (*Trade, error) {
	if portfolioID <= 0 {
		return nil, fmt.Errorf("portfolio id must be positive, got %d", portfolioID)
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol must not be empty")
	}
	if !side.IsValid() {
		return nil, fmt.Errorf("invalid trade side %q", side)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("entry price must be positive, got %v", entryPrice)
	}
	if entryTime.IsZero() {
		entryTime = time.Now()
	}
	return &Trade{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Side:        side,
		Status:      StatusOpen,
		EntryPrice:  entryPrice,
		Quantity:    quantity,
		EntryTime:   entryTime,
	}, nil
}

// IsOpen checks if the trade status is open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// Close marks the trade as closed with the given exit details.
// Status==closed and ExitPrice being set move together; callers never set
// the exit fields directly.
func (t *Trade) Close(exitPrice, realizedPnL float64, exitTime time.Time) error {
	if !t.IsOpen() {
		return fmt.Errorf("trade %d is already closed", t.ID)
	}
	if exitPrice <= 0 {
		return fmt.Errorf("exit price must be positive, got %v", exitPrice)
	}
	if !exitTime.IsZero() && exitTime.Before(t.EntryTime) {
		return fmt.Errorf("exit time %s precedes entry time %s", exitTime, t.EntryTime)
	}
	if exitTime.IsZero() {
		exitTime = time.Now()
	}
	t.Status = StatusClosed
	t.ExitPrice = exitPrice
	t.ExitTime = exitTime
	t.RealizedPnL = realizedPnL
	return nil
}

// CostBasis returns the gross notional value at entry.
func (t *Trade) CostBasis() float64 {
	return t.EntryPrice * t.Quantity
}
