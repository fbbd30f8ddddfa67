package position

import (
	"fmt"

	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
)

// QuoteFunc supplies the most recent known price for a symbol. A false
// return means no price is available; the aggregator then values the
// position at its entry price rather than failing. Upstream feeds are
// unreliable, so a missing price degrades valuation instead of blocking it.
type QuoteFunc func(symbol string) (float64, bool)

// SymbolPosition holds the aggregated figures for one symbol.
type SymbolPosition struct {
	Symbol        string
	Quantity      float64
	CostBasis     float64
	MarketValue   float64
	UnrealizedPnL float64
	Estimated     bool // true when any trade in this symbol fell back to entry price
}

// Summary holds the aggregated figures across all open trades.
type Summary struct {
	BySymbol           map[string]SymbolPosition
	TotalMarketValue   float64
	TotalUnrealizedPnL float64
	TotalCostBasis     float64
	Estimated          bool // true when any position fell back to entry price
}

// Aggregate computes market value, unrealized P&L, and cost basis over a
// set of open trades. Unrealized P&L charges sell-side exit fees only: the
// entry fee is sunk and the figure answers "what if I closed now".
func Aggregate(trades []*domain.Trade, lookup QuoteFunc, sched fees.Schedule) (*Summary, error) {
	summary := &Summary{BySymbol: make(map[string]SymbolPosition)}

	for _, t := range trades {
		if t == nil {
			return nil, fmt.Errorf("nil trade in aggregation input: %w", ports.ErrInvalidArgument)
		}
		if !t.IsOpen() {
			return nil, fmt.Errorf("trade %d is closed, aggregation takes open trades only: %w", t.ID, ports.ErrInvalidArgument)
		}

		price, known := 0.0, false
		if lookup != nil {
			price, known = lookup(t.Symbol)
		}
		estimated := !known || price <= 0
		if estimated {
			price = t.EntryPrice
		}

		marketValue := t.Quantity * price
		unrealized, err := pnl.MarkToMarket(t.EntryPrice, price, t.Quantity, t.Side, sched)
		if err != nil {
			return nil, fmt.Errorf("mark-to-market for trade %d: %w", t.ID, err)
		}

		sp := summary.BySymbol[t.Symbol]
		sp.Symbol = t.Symbol
		sp.Quantity += t.Quantity
		sp.CostBasis += t.CostBasis()
		sp.MarketValue += marketValue
		sp.UnrealizedPnL += unrealized
		sp.Estimated = sp.Estimated || estimated
		summary.BySymbol[t.Symbol] = sp

		summary.TotalMarketValue += marketValue
		summary.TotalUnrealizedPnL += unrealized
		summary.TotalCostBasis += t.CostBasis()
		summary.Estimated = summary.Estimated || estimated
	}

	return summary, nil
}
