package ports

import (
	"context"

	"tradejournal/internal/domain"
)

// PortfolioRepository defines the interface for storing and retrieving portfolios.
type PortfolioRepository interface {
	// CreatePortfolio saves a new portfolio and returns its assigned ID.
	CreatePortfolio(ctx context.Context, p *domain.Portfolio) (int64, error)
	// FindPortfolioByID retrieves a portfolio by its unique ID.
	// Returns nil, nil if not found.
	FindPortfolioByID(ctx context.Context, id int64) (*domain.Portfolio, error)
	// FindAllPortfolios retrieves all portfolios, ordered by creation time.
	FindAllPortfolios(ctx context.Context) ([]*domain.Portfolio, error)
	// DeletePortfolio removes a portfolio together with its trades,
	// transactions, and history entries in a single database transaction.
	DeletePortfolio(ctx context.Context, id int64) error
	// ApplyCashDelta atomically adjusts the portfolio cash ledger:
	// available_cash += cashDelta, total_deposits += depositDelta,
	// total_withdrawals += withdrawalDelta, all evaluated server-side in one
	// statement. The update is conditional on the resulting cash being
	// non-negative; a violated condition returns ErrInsufficientCash.
	ApplyCashDelta(ctx context.Context, id int64, cashDelta, depositDelta, withdrawalDelta float64) error
	// ApplyRealizedPnL atomically adds pnlDelta to the portfolio's realized
	// P&L and keeps current_balance in sync in the same statement.
	ApplyRealizedPnL(ctx context.Context, id int64, pnlDelta float64) error
}

// TradeRepository defines the interface for storing and retrieving journaled trades.
type TradeRepository interface {
	// CreateTrade saves a new trade and returns its assigned ID.
	CreateTrade(ctx context.Context, t *domain.Trade) (int64, error)
	// UpdateTrade modifies an existing trade.
	UpdateTrade(ctx context.Context, t *domain.Trade) error
	// FindTradeByID retrieves a trade by its unique ID.
	// Returns nil, nil if not found.
	FindTradeByID(ctx context.Context, id int64) (*domain.Trade, error)
	// FindTradesByPortfolio retrieves all trades for a portfolio, ordered by
	// entry time descending.
	FindTradesByPortfolio(ctx context.Context, portfolioID int64) ([]*domain.Trade, error)
	// FindTradesByStatus retrieves trades for a portfolio filtered by status.
	FindTradesByStatus(ctx context.Context, portfolioID int64, status domain.TradeStatus) ([]*domain.Trade, error)
	// SettleClose persists a closed trade and folds its realized P&L into the
	// owning portfolio in one storage transaction; a failure on either side
	// leaves both untouched.
	SettleClose(ctx context.Context, t *domain.Trade) error
	// SettlePartialClose persists the closed slice, the shrunken parent, and
	// the slice's realized P&L in one storage transaction, returning the
	// slice's assigned ID. The slice is never visible without the shrunken
	// parent.
	SettlePartialClose(ctx context.Context, slice, parent *domain.Trade) (int64, error)
}

// TransactionRepository defines the interface for the immutable cash ledger.
// There is deliberately no update or delete: corrections are compensating
// entries.
type TransactionRepository interface {
	// CreateTransaction saves a new cash transaction and returns its assigned ID.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) (int64, error)
	// RecordCashMovement saves the transaction and applies its cash delta to
	// the owning portfolio in one storage transaction: the ledger row and the
	// cash figure move together or not at all. Overdraws return
	// ErrInsufficientCash, a missing portfolio ErrNotFound.
	RecordCashMovement(ctx context.Context, tx *domain.Transaction) (int64, error)
	// FindTransactionsByPortfolio retrieves all transactions for a portfolio,
	// ordered by creation time ascending.
	FindTransactionsByPortfolio(ctx context.Context, portfolioID int64) ([]*domain.Transaction, error)
}

// HistoryRepository defines the append-only sink for trade audit entries.
type HistoryRepository interface {
	// AppendHistory saves a new history entry and returns its assigned ID.
	AppendHistory(ctx context.Context, entry *domain.HistoryEntry) (int64, error)
	// FindHistoryByTrade retrieves all history entries for a trade, ordered
	// by creation time ascending.
	FindHistoryByTrade(ctx context.Context, tradeID int64) ([]*domain.HistoryEntry, error)
}
