package pnl

import (
	"fmt"

	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/ports"
)

// Gross computes the realized profit/loss of closing quantity units at
// exit, before any transaction costs. It is exported as the explicit
// "gross view"; everything the journal persists goes through Net.
func Gross(entry, exit, qty float64, side domain.TradeSide) (float64, error) {
	if err := validate(entry, exit, qty, side); err != nil {
		return 0, err
	}
	switch side {
	case domain.Long:
		return (exit - entry) * qty, nil
	default:
		return (entry - exit) * qty, nil
	}
}

// Net computes the fee-adjusted realized profit/loss of a close: gross
// P&L minus the buy-side costs of the entry fill and the sell-side costs
// of the exit fill. This is the canonical figure recorded on every close.
func Net(entry, exit, qty float64, side domain.TradeSide, sched fees.Schedule) (float64, error) {
	gross, err := Gross(entry, exit, qty, side)
	if err != nil {
		return 0, err
	}
	entryFees, err := sched.Compute(entry*qty, true)
	if err != nil {
		return 0, err
	}
	exitFees, err := sched.Compute(exit*qty, false)
	if err != nil {
		return 0, err
	}
	return gross - entryFees.TotalFees - exitFees.TotalFees, nil
}

// MarkToMarket computes the unrealized profit/loss of an open position as
// if it were closed now at price: gross P&L minus the sell-side exit costs
// only. The entry fee is already sunk and is not charged again.
func MarkToMarket(entry, price, qty float64, side domain.TradeSide, sched fees.Schedule) (float64, error) {
	gross, err := Gross(entry, price, qty, side)
	if err != nil {
		return 0, err
	}
	exitFees, err := sched.Compute(price*qty, false)
	if err != nil {
		return 0, err
	}
	return gross - exitFees.TotalFees, nil
}

func validate(entry, exit, qty float64, side domain.TradeSide) error {
	if entry <= 0 {
		return fmt.Errorf("entry price must be positive, got %v: %w", entry, ports.ErrInvalidArgument)
	}
	if exit <= 0 {
		return fmt.Errorf("exit price must be positive, got %v: %w", exit, ports.ErrInvalidArgument)
	}
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %v: %w", qty, ports.ErrInvalidArgument)
	}
	if !side.IsValid() {
		return fmt.Errorf("invalid trade side %q: %w", side, ports.ErrInvalidArgument)
	}
	return nil
}
