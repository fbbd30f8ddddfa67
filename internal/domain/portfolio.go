package domain

import "time"

// Portfolio is an aggregation boundary with its own currency and cash
// ledger. It owns trades and transactions; deleting a portfolio cascades
// to both.
//
// AvailableCash is the raw cash ledger: deposits minus withdrawals minus
// cash consumed by open positions. CurrentBalance duplicates the computed
// equity figure and is kept in sync at write time so listing views do not
// need a full reduce.
type Portfolio struct {
	ID               int64     // Unique identifier (assigned by the repository)
	Name             string    // Display name
	Currency         string    // ISO currency code (e.g., "PHP", "USD")
	InitialBalance   float64   // Starting balance, the base of the equity formula
	AvailableCash    float64   // Raw cash ledger
	CurrentBalance   float64   // Equity duplicate maintained on the write path
	TotalDeposits    float64   // Lifetime sum of deposits
	TotalWithdrawals float64   // Lifetime sum of withdrawals
	RealizedPnL      float64   // Accumulated fee-adjusted realized P&L
	CreatedAt        time.Time // Creation timestamp
}
