package equity

import (
	"fmt"
	"math"
	"sort"

	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/position"
	"tradejournal/internal/ports"
)

// Slice is one allocation entry for charting: a label ("Cash" or a symbol)
// and its current value.
type Slice struct {
	Label string
	Value float64
}

// Summary is the reduced view of a portfolio.
//
// AvailableCash here is the display aggregate "raw cash plus what open
// positions are currently worth"; it is not a spendable balance and must
// never be used for debit/credit decisions. The raw ledger figure stays on
// the Portfolio record.
type Summary struct {
	AvailableCash   float64
	EquityValue     float64
	RealizedPnL     float64
	UnrealizedPnL   float64
	TotalPnL        float64
	Allocation      []Slice
	PricesEstimated bool // true when any open position was valued at its entry price
}

// Reduce folds open positions, closed-trade realized P&L, and the cash
// ledger into a portfolio summary.
//
// Equity is defined from the P&L ledger: InitialBalance + TotalPnL. It is
// deliberately not computed as cash + market value — cash entries and
// trade fills are recorded independently and are allowed to drift, and the
// P&L definition stays consistent even when cash entries lag.
func Reduce(p *domain.Portfolio, open, closed []*domain.Trade, txs []*domain.Transaction, lookup position.QuoteFunc, sched fees.Schedule) (*Summary, error) {
	if p == nil {
		return nil, fmt.Errorf("portfolio is required: %w", ports.ErrInvalidArgument)
	}
	if err := auditLedger(p, txs); err != nil {
		return nil, err
	}

	// Realized P&L was fee-adjusted when each close was recorded; summing
	// the stored figures avoids double-counting fees.
	var realized float64
	for _, t := range closed {
		if t == nil || t.IsOpen() {
			return nil, fmt.Errorf("closed-trade list contains an open trade: %w", ports.ErrInvalidArgument)
		}
		realized += t.RealizedPnL
	}

	agg, err := position.Aggregate(open, lookup, sched)
	if err != nil {
		return nil, err
	}

	total := realized + agg.TotalUnrealizedPnL

	summary := &Summary{
		AvailableCash:   p.AvailableCash + agg.TotalMarketValue,
		EquityValue:     p.InitialBalance + total,
		RealizedPnL:     realized,
		UnrealizedPnL:   agg.TotalUnrealizedPnL,
		TotalPnL:        total,
		PricesEstimated: agg.Estimated,
	}

	summary.Allocation = append(summary.Allocation, Slice{Label: "Cash", Value: p.AvailableCash})
	symbols := make([]string, 0, len(agg.BySymbol))
	for sym := range agg.BySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		summary.Allocation = append(summary.Allocation, Slice{Label: sym, Value: agg.BySymbol[sym].MarketValue})
	}

	return summary, nil
}

// ledgerEpsilon absorbs float accumulation noise when comparing replayed
// sums against the stored totals.
const ledgerEpsilon = 1e-6

// auditLedger replays the transaction list in time order over the initial
// balance and rejects entries that could never have been accepted: a
// non-positive amount, an unknown type, or a withdrawal that would have
// driven cash negative. The replayed deposit and withdrawal sums must also
// match the totals stored on the portfolio record. It does not reconcile
// trade fills against cash; the two ledgers drift by design.
func auditLedger(p *domain.Portfolio, txs []*domain.Transaction) error {
	ordered := make([]*domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	running := p.InitialBalance
	var deposits, withdrawals float64
	for _, tx := range ordered {
		if tx == nil {
			return fmt.Errorf("nil transaction in ledger: %w", ports.ErrInvalidArgument)
		}
		if tx.Amount <= 0 {
			return fmt.Errorf("transaction %d has non-positive amount %v: %w", tx.ID, tx.Amount, ports.ErrInvalidArgument)
		}
		switch tx.Type {
		case domain.Deposit:
			running += tx.Amount
			deposits += tx.Amount
		case domain.Withdrawal:
			running -= tx.Amount
			withdrawals += tx.Amount
		default:
			return fmt.Errorf("transaction %d has unknown type %q: %w", tx.ID, tx.Type, ports.ErrInvalidArgument)
		}
		if running < 0 {
			return fmt.Errorf("ledger goes negative at transaction %d (balance %v): %w", tx.ID, running, ports.ErrInconsistentState)
		}
	}

	if math.Abs(deposits-p.TotalDeposits) > ledgerEpsilon {
		return fmt.Errorf("replayed deposits %v contradict recorded total %v: %w", deposits, p.TotalDeposits, ports.ErrInconsistentState)
	}
	if math.Abs(withdrawals-p.TotalWithdrawals) > ledgerEpsilon {
		return fmt.Errorf("replayed withdrawals %v contradict recorded total %v: %w", withdrawals, p.TotalWithdrawals, ports.ErrInconsistentState)
	}
	return nil
}
