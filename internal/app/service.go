package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"tradejournal/config"
	"tradejournal/internal/analytics"
	"tradejournal/internal/boardlot"
	"tradejournal/internal/domain"
	"tradejournal/internal/equity"
	"tradejournal/internal/fees"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
	"tradejournal/internal/pricecache"
	"tradejournal/internal/utils"
)

// JournalService orchestrates the trading journal: trade lifecycle, the
// cash ledger, and the computed portfolio views. All financial rules live
// in the calculation packages; the service wires them to storage and the
// price feed.
type JournalService struct {
	cfg          *config.Config
	logger       ports.Logger
	portfolios   ports.PortfolioRepository
	trades       ports.TradeRepository
	transactions ports.TransactionRepository
	history      ports.HistoryRepository
	feed         ports.PriceFeed
	quotes       *pricecache.Cache
	sched        fees.Schedule
}

// NewJournalService creates a new application service instance.
// The price feed may be nil: valuations then fall back to entry prices.
func NewJournalService(
	cfg *config.Config,
	logger ports.Logger,
	portfolios ports.PortfolioRepository,
	trades ports.TradeRepository,
	transactions ports.TransactionRepository,
	history ports.HistoryRepository,
	feed ports.PriceFeed,
	quotes *pricecache.Cache,
) (*JournalService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || portfolios == nil || trades == nil || transactions == nil || history == nil {
		return nil, fmt.Errorf("missing required dependencies for JournalService")
	}
	if quotes == nil {
		quotes = pricecache.New(cfg.PriceCacheTTL)
	}

	sched := fees.DefaultSchedule()
	sched.CommissionRate = cfg.CommissionRate
	sched.MinCommission = cfg.MinCommission

	return &JournalService{
		cfg:          cfg,
		logger:       logger,
		portfolios:   portfolios,
		trades:       trades,
		transactions: transactions,
		history:      history,
		feed:         feed,
		quotes:       quotes,
		sched:        sched,
	}, nil
}

// FeeSchedule returns the fee schedule the service applies to fills.
func (s *JournalService) FeeSchedule() fees.Schedule {
	return s.sched
}

// --- Portfolio management ---

// CreatePortfolio creates a new portfolio with its cash ledger seeded from
// the initial balance.
func (s *JournalService) CreatePortfolio(ctx context.Context, name, currency string, initialBalance float64) (*domain.Portfolio, error) {
	if name == "" {
		return nil, fmt.Errorf("portfolio name must not be empty: %w", ports.ErrInvalidArgument)
	}
	if currency == "" {
		currency = "PHP"
	}
	if initialBalance < 0 {
		return nil, fmt.Errorf("initial balance cannot be negative, got %v: %w", initialBalance, ports.ErrInvalidArgument)
	}

	p := &domain.Portfolio{
		Name:           name,
		Currency:       currency,
		InitialBalance: initialBalance,
		AvailableCash:  initialBalance,
		CurrentBalance: initialBalance,
		CreatedAt:      time.Now(),
	}
	if _, err := s.portfolios.CreatePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	s.logger.Info(ctx, "Portfolio created", map[string]interface{}{"portfolioID": p.ID, "name": name, "initialBalance": initialBalance})
	return p, nil
}

// DeletePortfolio removes a portfolio and everything it owns.
func (s *JournalService) DeletePortfolio(ctx context.Context, portfolioID int64) error {
	if err := s.portfolios.DeletePortfolio(ctx, portfolioID); err != nil {
		return fmt.Errorf("failed to delete portfolio %d: %w", portfolioID, err)
	}
	s.logger.Info(ctx, "Portfolio deleted", map[string]interface{}{"portfolioID": portfolioID})
	return nil
}

// Portfolios lists all portfolios.
func (s *JournalService) Portfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	return s.portfolios.FindAllPortfolios(ctx)
}

// --- Trade lifecycle ---

// OpenTrade records a new open trade in a portfolio.
func (s *JournalService) OpenTrade(ctx context.Context, portfolioID int64, symbol string, side domain.TradeSide, quantity, entryPrice float64, at time.Time) (*domain.Trade, error) {
	p, err := s.portfolios.FindPortfolioByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, ports.ErrNotFound)
	}

	trade, err := domain.NewTrade(portfolioID, symbol, side, quantity, entryPrice, at)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrInvalidArgument)
	}
	if _, err := s.trades.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}

	s.appendHistory(ctx, &domain.HistoryEntry{
		TradeID:   trade.ID,
		Event:     domain.EventOpen,
		Quantity:  quantity,
		Price:     entryPrice,
		CreatedAt: trade.EntryTime,
	})
	s.logger.Info(ctx, "Trade opened", map[string]interface{}{"tradeID": trade.ID, "symbol": symbol, "side": side, "quantity": quantity, "entryPrice": entryPrice})
	return trade, nil
}

// AddToPosition increases an open trade's quantity, re-averaging the entry
// price over the combined size. The entry time is kept from the original fill.
func (s *JournalService) AddToPosition(ctx context.Context, tradeID int64, quantity, price float64, at time.Time) (*domain.Trade, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v: %w", quantity, ports.ErrInvalidArgument)
	}
	if price <= 0 {
		return nil, fmt.Errorf("price must be positive, got %v: %w", price, ports.ErrInvalidArgument)
	}

	trade, err := s.loadOpenTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	combined := trade.Quantity + quantity
	trade.EntryPrice = (trade.EntryPrice*trade.Quantity + price*quantity) / combined
	trade.Quantity = combined
	if err := s.trades.UpdateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to update trade %d: %w", tradeID, err)
	}

	s.appendHistory(ctx, &domain.HistoryEntry{
		TradeID:   tradeID,
		Event:     domain.EventAddPosition,
		Quantity:  quantity,
		Price:     price,
		CreatedAt: orNow(at),
	})
	s.logger.Info(ctx, "Added to position", map[string]interface{}{"tradeID": tradeID, "quantity": quantity, "price": price, "newEntryPrice": trade.EntryPrice})
	return trade, nil
}

// CloseTrade fully closes an open trade at the given exit price. The
// realized P&L is always fee-adjusted; the portfolio's realized P&L ledger
// is updated atomically in the same operation.
func (s *JournalService) CloseTrade(ctx context.Context, tradeID int64, exitPrice float64, at time.Time) (*domain.Trade, error) {
	trade, err := s.loadOpenTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	realized, err := pnl.Net(trade.EntryPrice, exitPrice, trade.Quantity, trade.Side, s.sched)
	if err != nil {
		return nil, err
	}
	if err := trade.Close(exitPrice, realized, at); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrInconsistentState)
	}
	if err := s.trades.SettleClose(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to settle close for trade %d: %w", tradeID, err)
	}

	s.appendHistory(ctx, &domain.HistoryEntry{
		TradeID:   tradeID,
		Event:     domain.EventClose,
		Quantity:  trade.Quantity,
		Price:     exitPrice,
		PnL:       realized,
		CreatedAt: trade.ExitTime,
	})
	s.logger.Info(ctx, "Trade closed", map[string]interface{}{"tradeID": tradeID, "exitPrice": exitPrice, "realizedPnL": realized})
	return trade, nil
}

// PartialCloseTrade closes part of an open trade. The closed slice becomes
// its own terminal trade record carrying the slice's realized P&L; the
// remaining open quantity keeps its original entry attributes. The slice
// quantity must be smaller than the open quantity and aligned to the board
// lot for the trade's entry price.
func (s *JournalService) PartialCloseTrade(ctx context.Context, tradeID int64, quantity, exitPrice float64, at time.Time) (slice *domain.Trade, remaining *domain.Trade, err error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("quantity must be positive, got %v: %w", quantity, ports.ErrInvalidArgument)
	}

	trade, err := s.loadOpenTrade(ctx, tradeID)
	if err != nil {
		return nil, nil, err
	}
	if quantity >= trade.Quantity {
		return nil, nil, fmt.Errorf("partial close quantity %v must be less than open quantity %v (use CloseTrade for a full close): %w",
			quantity, trade.Quantity, ports.ErrInvalidArgument)
	}

	lot, err := boardlot.LotSize(trade.EntryPrice)
	if err != nil {
		return nil, nil, err
	}
	if quantity != math.Trunc(quantity) || !boardlot.ValidateQuantity(int64(quantity), lot) {
		return nil, nil, fmt.Errorf("partial close quantity %v is not aligned to the %d-share board lot: %w",
			quantity, lot, ports.ErrInvalidArgument)
	}

	realized, err := pnl.Net(trade.EntryPrice, exitPrice, quantity, trade.Side, s.sched)
	if err != nil {
		return nil, nil, err
	}

	slice, err = domain.NewTrade(trade.PortfolioID, trade.Symbol, trade.Side, quantity, trade.EntryPrice, trade.EntryTime)
	if err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, ports.ErrInvalidArgument)
	}
	slice.ParentID = trade.ID
	if err := slice.Close(exitPrice, realized, at); err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, ports.ErrInconsistentState)
	}

	// Only the quantity shrinks; entry price and entry time stay untouched.
	// The slice insert, the shrink, and the P&L application land together.
	trade.Quantity -= quantity
	if _, err := s.trades.SettlePartialClose(ctx, slice, trade); err != nil {
		return nil, nil, fmt.Errorf("failed to settle partial close for trade %d: %w", tradeID, err)
	}

	s.appendHistory(ctx, &domain.HistoryEntry{
		TradeID:   tradeID,
		Event:     domain.EventPartialClose,
		Quantity:  quantity,
		Price:     exitPrice,
		PnL:       realized,
		CreatedAt: slice.ExitTime,
	})
	s.logger.Info(ctx, "Trade partially closed", map[string]interface{}{
		"tradeID": tradeID, "sliceID": slice.ID, "quantity": quantity, "exitPrice": exitPrice, "realizedPnL": realized, "remaining": trade.Quantity,
	})
	return slice, trade, nil
}

// AddRemark appends a free-form note to a trade's history.
func (s *JournalService) AddRemark(ctx context.Context, tradeID int64, note string) error {
	if note == "" {
		return fmt.Errorf("remark must not be empty: %w", ports.ErrInvalidArgument)
	}
	trade, err := s.trades.FindTradeByID(ctx, tradeID)
	if err != nil {
		return err
	}
	if trade == nil {
		return fmt.Errorf("trade %d: %w", tradeID, ports.ErrNotFound)
	}

	entry := &domain.HistoryEntry{
		TradeID:   tradeID,
		Event:     domain.EventRemark,
		Note:      note,
		CreatedAt: time.Now(),
	}
	if _, err := s.history.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append remark for trade %d: %w", tradeID, err)
	}
	return nil
}

// TradeHistory returns the append-only audit log for a trade.
func (s *JournalService) TradeHistory(ctx context.Context, tradeID int64) ([]*domain.HistoryEntry, error) {
	return s.history.FindHistoryByTrade(ctx, tradeID)
}

// --- Cash ledger ---

// RecordDeposit adds cash to a portfolio. The ledger row and the cash
// increment are written in one storage transaction; the two can never
// drift apart.
func (s *JournalService) RecordDeposit(ctx context.Context, portfolioID int64, amount float64, note string, at time.Time) (*domain.Transaction, error) {
	tx, err := domain.NewTransaction(portfolioID, domain.Deposit, amount, note, at)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrInvalidArgument)
	}
	if _, err := s.transactions.RecordCashMovement(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Deposit recorded", map[string]interface{}{"portfolioID": portfolioID, "amount": amount})
	return tx, nil
}

// RecordWithdrawal removes cash from a portfolio. A withdrawal that would
// drive the cash ledger negative is rejected with ErrInsufficientCash and
// leaves no ledger row behind.
func (s *JournalService) RecordWithdrawal(ctx context.Context, portfolioID int64, amount float64, note string, at time.Time) (*domain.Transaction, error) {
	tx, err := domain.NewTransaction(portfolioID, domain.Withdrawal, amount, note, at)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ports.ErrInvalidArgument)
	}
	if _, err := s.transactions.RecordCashMovement(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Withdrawal recorded", map[string]interface{}{"portfolioID": portfolioID, "amount": amount})
	return tx, nil
}

// --- Computed views ---

// PortfolioSummary reduces a portfolio's records into its current cash,
// equity, P&L, and allocation figures. Quotes come from the TTL cache,
// refreshed through the price feed; symbols with no obtainable quote are
// valued at entry price and flagged as estimated in the result.
func (s *JournalService) PortfolioSummary(ctx context.Context, portfolioID int64) (*equity.Summary, error) {
	p, err := s.portfolios.FindPortfolioByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, ports.ErrNotFound)
	}

	open, err := s.trades.FindTradesByStatus(ctx, portfolioID, domain.StatusOpen)
	if err != nil {
		return nil, err
	}
	closed, err := s.trades.FindTradesByStatus(ctx, portfolioID, domain.StatusClosed)
	if err != nil {
		return nil, err
	}
	txs, err := s.transactions.FindTransactionsByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	quotes := s.refreshQuotes(ctx, open)
	lookup := func(symbol string) (float64, bool) {
		price, ok := quotes[symbol]
		return price, ok
	}

	return equity.Reduce(p, open, closed, txs, lookup, s.sched)
}

// Performance computes win rate, profit factor, drawdown, and the other
// closed-trade metrics for a portfolio.
func (s *JournalService) Performance(ctx context.Context, portfolioID int64) (*analytics.Metrics, error) {
	p, err := s.portfolios.FindPortfolioByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, ports.ErrNotFound)
	}
	closed, err := s.trades.FindTradesByStatus(ctx, portfolioID, domain.StatusClosed)
	if err != nil {
		return nil, err
	}
	return analytics.Analyze(closed, p.InitialBalance), nil
}

// ExportTrades writes all trades of a portfolio to a CSV file.
func (s *JournalService) ExportTrades(ctx context.Context, portfolioID int64, filename string) error {
	trades, err := s.trades.FindTradesByPortfolio(ctx, portfolioID)
	if err != nil {
		return err
	}
	if err := utils.WriteTradesToCSV(trades, filename); err != nil {
		return fmt.Errorf("failed to export trades for portfolio %d: %w", portfolioID, err)
	}
	s.logger.Info(ctx, "Trades exported", map[string]interface{}{"portfolioID": portfolioID, "file": filename, "count": len(trades)})
	return nil
}

// --- Internals ---

// refreshQuotes resolves a price per distinct open symbol: cache first,
// then the feed. Feed failures degrade to a missing quote — the aggregator
// falls back to entry prices — and are logged, never fatal.
func (s *JournalService) refreshQuotes(ctx context.Context, open []*domain.Trade) map[string]float64 {
	quotes := make(map[string]float64)
	for _, t := range open {
		if _, done := quotes[t.Symbol]; done {
			continue
		}
		if price, ok := s.quotes.Get(t.Symbol); ok {
			quotes[t.Symbol] = price
			continue
		}
		if s.feed == nil {
			continue
		}
		quoteCtx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
		price, err := s.feed.Quote(quoteCtx, t.Symbol)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "Quote unavailable, valuing at entry price", map[string]interface{}{"symbol": t.Symbol, "error": err.Error()})
			continue
		}
		s.quotes.Set(t.Symbol, price, time.Now())
		quotes[t.Symbol] = price
	}
	return quotes
}

// loadOpenTrade fetches a trade and enforces that it is still open.
func (s *JournalService) loadOpenTrade(ctx context.Context, tradeID int64) (*domain.Trade, error) {
	trade, err := s.trades.FindTradeByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %d: %w", tradeID, ports.ErrNotFound)
	}
	if !trade.IsOpen() {
		return nil, fmt.Errorf("trade %d is already closed: %w", tradeID, ports.ErrInconsistentState)
	}
	return trade, nil
}

// appendHistory writes an audit entry. The history log is a best-effort
// sink: a failed append is logged but never rolls back the operation that
// produced it.
func (s *JournalService) appendHistory(ctx context.Context, entry *domain.HistoryEntry) {
	if _, err := s.history.AppendHistory(ctx, entry); err != nil {
		s.logger.Error(ctx, err, "Failed to append history entry", map[string]interface{}{"tradeID": entry.TradeID, "event": entry.Event})
	}
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
