package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/config"
	"tradejournal/internal/domain"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
	"tradejournal/internal/pricecache"
)

// Mock implementations
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockPortfolioRepo struct {
	portfolios map[int64]*domain.Portfolio
	nextID     int64
	createErr  error
}

func newMockPortfolioRepo() *mockPortfolioRepo {
	return &mockPortfolioRepo{portfolios: make(map[int64]*domain.Portfolio)}
}

func (m *mockPortfolioRepo) CreatePortfolio(ctx context.Context, p *domain.Portfolio) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.nextID++
	p.ID = m.nextID
	m.portfolios[p.ID] = p
	return p.ID, nil
}

func (m *mockPortfolioRepo) FindPortfolioByID(ctx context.Context, id int64) (*domain.Portfolio, error) {
	return m.portfolios[id], nil
}

func (m *mockPortfolioRepo) FindAllPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	var out []*domain.Portfolio
	for _, p := range m.portfolios {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPortfolioRepo) DeletePortfolio(ctx context.Context, id int64) error {
	if _, ok := m.portfolios[id]; !ok {
		return ports.ErrNotFound
	}
	delete(m.portfolios, id)
	return nil
}

func (m *mockPortfolioRepo) ApplyCashDelta(ctx context.Context, id int64, cashDelta, depositDelta, withdrawalDelta float64) error {
	p, ok := m.portfolios[id]
	if !ok {
		return ports.ErrNotFound
	}
	if p.AvailableCash+cashDelta < 0 {
		return ports.ErrInsufficientCash
	}
	p.AvailableCash += cashDelta
	p.TotalDeposits += depositDelta
	p.TotalWithdrawals += withdrawalDelta
	return nil
}

func (m *mockPortfolioRepo) ApplyRealizedPnL(ctx context.Context, id int64, pnlDelta float64) error {
	p, ok := m.portfolios[id]
	if !ok {
		return ports.ErrNotFound
	}
	p.RealizedPnL += pnlDelta
	p.CurrentBalance = p.InitialBalance + p.RealizedPnL
	return nil
}

type mockTradeRepo struct {
	trades     map[int64]*domain.Trade
	portfolios *mockPortfolioRepo
	nextID     int64
	createErr  error
	updateErr  error
	settleErr  error
}

func newMockTradeRepo() *mockTradeRepo {
	return &mockTradeRepo{trades: make(map[int64]*domain.Trade)}
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, t *domain.Trade) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.nextID++
	t.ID = m.nextID
	m.trades[t.ID] = t
	return t.ID, nil
}

func (m *mockTradeRepo) UpdateTrade(ctx context.Context, t *domain.Trade) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.trades[t.ID]; !ok {
		return ports.ErrNotFound
	}
	m.trades[t.ID] = t
	return nil
}

func (m *mockTradeRepo) FindTradeByID(ctx context.Context, id int64) (*domain.Trade, error) {
	return m.trades[id], nil
}

func (m *mockTradeRepo) FindTradesByPortfolio(ctx context.Context, portfolioID int64) ([]*domain.Trade, error) {
	var out []*domain.Trade
	for _, t := range m.trades {
		if t.PortfolioID == portfolioID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTradeRepo) FindTradesByStatus(ctx context.Context, portfolioID int64, status domain.TradeStatus) ([]*domain.Trade, error) {
	var out []*domain.Trade
	for _, t := range m.trades {
		if t.PortfolioID == portfolioID && t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTradeRepo) SettleClose(ctx context.Context, t *domain.Trade) error {
	if m.settleErr != nil {
		return m.settleErr
	}
	if err := m.UpdateTrade(ctx, t); err != nil {
		return err
	}
	return m.portfolios.ApplyRealizedPnL(ctx, t.PortfolioID, t.RealizedPnL)
}

func (m *mockTradeRepo) SettlePartialClose(ctx context.Context, slice, parent *domain.Trade) (int64, error) {
	if m.settleErr != nil {
		return 0, m.settleErr
	}
	id, err := m.CreateTrade(ctx, slice)
	if err != nil {
		return 0, err
	}
	if err := m.UpdateTrade(ctx, parent); err != nil {
		return 0, err
	}
	if err := m.portfolios.ApplyRealizedPnL(ctx, parent.PortfolioID, slice.RealizedPnL); err != nil {
		return 0, err
	}
	return id, nil
}

type mockTransactionRepo struct {
	transactions []*domain.Transaction
	portfolios   *mockPortfolioRepo
	nextID       int64
}

func (m *mockTransactionRepo) CreateTransaction(ctx context.Context, tx *domain.Transaction) (int64, error) {
	m.nextID++
	tx.ID = m.nextID
	m.transactions = append(m.transactions, tx)
	return tx.ID, nil
}

func (m *mockTransactionRepo) RecordCashMovement(ctx context.Context, tx *domain.Transaction) (int64, error) {
	var cashDelta, depositDelta, withdrawalDelta float64
	switch tx.Type {
	case domain.Deposit:
		cashDelta, depositDelta = tx.Amount, tx.Amount
	case domain.Withdrawal:
		cashDelta, withdrawalDelta = -tx.Amount, tx.Amount
	default:
		return 0, ports.ErrInvalidArgument
	}
	if err := m.portfolios.ApplyCashDelta(ctx, tx.PortfolioID, cashDelta, depositDelta, withdrawalDelta); err != nil {
		return 0, err
	}
	return m.CreateTransaction(ctx, tx)
}

func (m *mockTransactionRepo) FindTransactionsByPortfolio(ctx context.Context, portfolioID int64) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, tx := range m.transactions {
		if tx.PortfolioID == portfolioID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type mockHistoryRepo struct {
	entries []*domain.HistoryEntry
	nextID  int64
}

func (m *mockHistoryRepo) AppendHistory(ctx context.Context, entry *domain.HistoryEntry) (int64, error) {
	m.nextID++
	entry.ID = m.nextID
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *mockHistoryRepo) FindHistoryByTrade(ctx context.Context, tradeID int64) ([]*domain.HistoryEntry, error) {
	var out []*domain.HistoryEntry
	for _, e := range m.entries {
		if e.TradeID == tradeID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockPriceFeed struct {
	prices   map[string]float64
	quoteErr error
	calls    int
}

func (m *mockPriceFeed) Quote(ctx context.Context, symbol string) (float64, error) {
	m.calls++
	if m.quoteErr != nil {
		return 0, m.quoteErr
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, ports.ErrQuoteUnavailable
	}
	return price, nil
}

func (m *mockPriceFeed) Ping(ctx context.Context) error {
	return nil
}

type testDeps struct {
	cfg          *config.Config
	logger       *mockLogger
	portfolios   *mockPortfolioRepo
	trades       *mockTradeRepo
	transactions *mockTransactionRepo
	history      *mockHistoryRepo
	feed         *mockPriceFeed
}

func newTestService(t *testing.T) (*JournalService, *testDeps) {
	t.Helper()
	deps := &testDeps{
		cfg: &config.Config{
			QuoteTimeout:   time.Second,
			PriceCacheTTL:  time.Minute,
			CommissionRate: 0.0025,
			MinCommission:  20.0,
		},
		logger:       &mockLogger{},
		portfolios:   newMockPortfolioRepo(),
		trades:       newMockTradeRepo(),
		transactions: &mockTransactionRepo{},
		history:      &mockHistoryRepo{},
		feed:         &mockPriceFeed{prices: make(map[string]float64)},
	}
	deps.trades.portfolios = deps.portfolios
	deps.transactions.portfolios = deps.portfolios
	svc, err := NewJournalService(deps.cfg, deps.logger, deps.portfolios, deps.trades, deps.transactions, deps.history, deps.feed, pricecache.New(deps.cfg.PriceCacheTTL))
	require.NoError(t, err)
	return svc, deps
}

func TestNewJournalServiceRequiresDependencies(t *testing.T) {
	_, err := NewJournalService(nil, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestCreatePortfolio(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, 100000.0, p.AvailableCash)
	assert.Equal(t, 100000.0, p.CurrentBalance)

	_, err = svc.CreatePortfolio(ctx, "", "PHP", 100000)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)

	_, err = svc.CreatePortfolio(ctx, "Bad", "PHP", -5)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestOpenAndCloseTrade(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)

	entryTime := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	trade, err := svc.OpenTrade(ctx, p.ID, "JFC", domain.Long, 1000, 100, entryTime)
	require.NoError(t, err)
	assert.True(t, trade.IsOpen())

	closed, err := svc.CloseTrade(ctx, trade.ID, 110, entryTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)

	wantPnL, err := pnl.Net(100, 110, 1000, domain.Long, svc.FeeSchedule())
	require.NoError(t, err)
	assert.InDelta(t, wantPnL, closed.RealizedPnL, 1e-9)
	assert.Less(t, closed.RealizedPnL, 10000.0) // fees always reduce the gross gain

	assert.InDelta(t, wantPnL, deps.portfolios.portfolios[p.ID].RealizedPnL, 1e-9)

	events, err := svc.TradeHistory(ctx, trade.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOpen, events[0].Event)
	assert.Equal(t, domain.EventClose, events[1].Event)
}

func TestCloseTradeTwiceFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)
	trade, err := svc.OpenTrade(ctx, p.ID, "JFC", domain.Long, 1000, 100, time.Time{})
	require.NoError(t, err)

	_, err = svc.CloseTrade(ctx, trade.ID, 110, time.Time{})
	require.NoError(t, err)

	_, err = svc.CloseTrade(ctx, trade.ID, 120, time.Time{})
	assert.ErrorIs(t, err, ports.ErrInconsistentState)
}

func TestCloseTradeNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CloseTrade(context.Background(), 42, 110, time.Time{})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestAddToPositionAveragesEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)
	trade, err := svc.OpenTrade(ctx, p.ID, "ALI", domain.Long, 1000, 30, time.Time{})
	require.NoError(t, err)

	updated, err := svc.AddToPosition(ctx, trade.ID, 1000, 34, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, updated.Quantity)
	assert.InDelta(t, 32.0, updated.EntryPrice, 1e-9)

	_, err = svc.AddToPosition(ctx, trade.ID, -5, 34, time.Time{})
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestPartialCloseSplitsTrade(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)
	// Entry price 10.0 sits in the 100-share board lot band.
	trade, err := svc.OpenTrade(ctx, p.ID, "MEG", domain.Long, 1000, 10, time.Time{})
	require.NoError(t, err)

	slice, remaining, err := svc.PartialCloseTrade(ctx, trade.ID, 400, 12, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusClosed, slice.Status)
	assert.Equal(t, trade.ID, slice.ParentID)
	assert.Equal(t, 400.0, slice.Quantity)
	assert.Equal(t, 10.0, slice.EntryPrice)

	assert.True(t, remaining.IsOpen())
	assert.Equal(t, 600.0, remaining.Quantity)
	assert.Equal(t, 10.0, remaining.EntryPrice)

	wantPnL, err := pnl.Net(10, 12, 400, domain.Long, svc.FeeSchedule())
	require.NoError(t, err)
	assert.InDelta(t, wantPnL, slice.RealizedPnL, 1e-9)
	assert.InDelta(t, wantPnL, deps.portfolios.portfolios[p.ID].RealizedPnL, 1e-9)
}

func TestPartialCloseRejectsMisalignedQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)
	trade, err := svc.OpenTrade(ctx, p.ID, "MEG", domain.Long, 1000, 10, time.Time{})
	require.NoError(t, err)

	// 150 is not a multiple of the 100-share lot.
	_, _, err = svc.PartialCloseTrade(ctx, trade.ID, 150, 12, time.Time{})
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestPartialCloseRejectsFullQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)
	trade, err := svc.OpenTrade(ctx, p.ID, "MEG", domain.Long, 1000, 10, time.Time{})
	require.NoError(t, err)

	_, _, err = svc.PartialCloseTrade(ctx, trade.ID, 1000, 12, time.Time{})
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestRecordDepositAndWithdrawal(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 10000)
	require.NoError(t, err)

	_, err = svc.RecordDeposit(ctx, p.ID, 5000, "salary", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 15000.0, deps.portfolios.portfolios[p.ID].AvailableCash)
	assert.Equal(t, 5000.0, deps.portfolios.portfolios[p.ID].TotalDeposits)

	_, err = svc.RecordWithdrawal(ctx, p.ID, 3000, "rent", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 12000.0, deps.portfolios.portfolios[p.ID].AvailableCash)
	assert.Equal(t, 3000.0, deps.portfolios.portfolios[p.ID].TotalWithdrawals)

	require.Len(t, deps.transactions.transactions, 2)
}

func TestRecordWithdrawalRejectsOverdraw(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 1000)
	require.NoError(t, err)

	_, err = svc.RecordWithdrawal(ctx, p.ID, 2000, "too much", time.Time{})
	assert.ErrorIs(t, err, ports.ErrInsufficientCash)
	assert.Equal(t, 1000.0, deps.portfolios.portfolios[p.ID].AvailableCash)
	// The rejected withdrawal must leave no ledger record behind.
	assert.Empty(t, deps.transactions.transactions)
}

func TestRecordDepositRejectsBadAmount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordDeposit(context.Background(), 1, -100, "", time.Time{})
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestPortfolioSummaryUsesFeedQuotes(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 200000)
	require.NoError(t, err)
	_, err = svc.OpenTrade(ctx, p.ID, "JFC", domain.Long, 100, 100, time.Time{})
	require.NoError(t, err)
	deps.feed.prices["JFC"] = 110

	summary, err := svc.PortfolioSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, summary.PricesEstimated)
	assert.InDelta(t, p.InitialBalance+summary.TotalPnL, summary.EquityValue, 1e-9)
	assert.Greater(t, summary.UnrealizedPnL, 0.0)

	// Second summary hits the TTL cache, not the feed.
	calls := deps.feed.calls
	_, err = svc.PortfolioSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, calls, deps.feed.calls)
}

func TestPortfolioSummaryFallsBackWhenFeedFails(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 200000)
	require.NoError(t, err)
	_, err = svc.OpenTrade(ctx, p.ID, "JFC", domain.Long, 100, 100, time.Time{})
	require.NoError(t, err)
	deps.feed.quoteErr = errors.New("exchange down")

	summary, err := svc.PortfolioSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, summary.PricesEstimated)
	assert.NotEmpty(t, deps.logger.warnMsgs)
}

func TestPortfolioSummaryNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PortfolioSummary(context.Background(), 99)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPerformance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)

	t1, err := svc.OpenTrade(ctx, p.ID, "JFC", domain.Long, 1000, 100, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = svc.CloseTrade(ctx, t1.ID, 110, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	t2, err := svc.OpenTrade(ctx, p.ID, "ALI", domain.Long, 1000, 100, time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = svc.CloseTrade(ctx, t2.ID, 95, time.Date(2024, 2, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	metrics, err := svc.Performance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.TotalTrades)
	assert.Equal(t, 1, metrics.WinningTrades)
	assert.Equal(t, 1, metrics.LosingTrades)
	assert.InDelta(t, 0.5, metrics.WinRate, 1e-9)
}

func TestAddRemark(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePortfolio(ctx, "Main", "PHP", 500000)
	require.NoError(t, err)
	trade, err := svc.OpenTrade(ctx, p.ID, "JFC", domain.Long, 1000, 100, time.Time{})
	require.NoError(t, err)

	require.NoError(t, svc.AddRemark(ctx, trade.ID, "breakout above resistance"))

	events, err := svc.TradeHistory(ctx, trade.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventRemark, events[1].Event)
	assert.Equal(t, "breakout above resistance", events[1].Note)

	err = svc.AddRemark(ctx, trade.ID, "")
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)

	err = svc.AddRemark(ctx, 999, "ghost")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
