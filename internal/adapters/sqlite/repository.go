package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports repository interfaces (portfolios,
// trades, transactions, history) using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradejournal.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS portfolios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		initial_balance REAL NOT NULL,
		available_cash REAL NOT NULL DEFAULT 0,
		current_balance REAL NOT NULL DEFAULT 0,
		total_deposits REAL NOT NULL DEFAULT 0,
		total_withdrawals REAL NOT NULL DEFAULT 0,
		realized_pnl REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id INTEGER NOT NULL,
		parent_id INTEGER DEFAULT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		status TEXT NOT NULL,
		entry_price REAL NOT NULL,
		quantity REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		realized_pnl REAL DEFAULT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id INTEGER NOT NULL,
		event TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		price REAL NOT NULL DEFAULT 0,
		pnl REAL NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_trades_portfolio_status ON trades (portfolio_id, status);
	CREATE INDEX IF NOT EXISTS idx_transactions_portfolio_created ON transactions (portfolio_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_trade_history_trade ON trade_history (trade_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PortfolioRepository Implementation ---

// CreatePortfolio saves a new portfolio and returns its assigned ID.
func (r *Repository) CreatePortfolio(ctx context.Context, p *domain.Portfolio) (int64, error) {
	const query = `
	INSERT INTO portfolios (name, currency, initial_balance, available_cash, current_balance,
	                        total_deposits, total_withdrawals, realized_pnl, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.Currency, p.InitialBalance, p.AvailableCash, p.CurrentBalance,
		p.TotalDeposits, p.TotalWithdrawals, p.RealizedPnL, p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert portfolio %q: %w", p.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for portfolio %q: %w", p.Name, err)
	}
	p.ID = id
	r.logger.Debug(ctx, "Portfolio created", map[string]interface{}{"portfolioID": id, "name": p.Name})
	return id, nil
}

// FindPortfolioByID retrieves a portfolio by its unique ID.
func (r *Repository) FindPortfolioByID(ctx context.Context, id int64) (*domain.Portfolio, error) {
	const query = `
	SELECT id, name, currency, initial_balance, available_cash, current_balance,
	       total_deposits, total_withdrawals, realized_pnl, created_at
	FROM portfolios
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanPortfolio(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Portfolio not found by ID", map[string]interface{}{"portfolioID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query portfolio by ID %d: %w", id, err)
	}
	return p, nil
}

// FindAllPortfolios retrieves all portfolios, ordered by creation time.
func (r *Repository) FindAllPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	const query = `
	SELECT id, name, currency, initial_balance, available_cash, current_balance,
	       total_deposits, total_withdrawals, realized_pnl, created_at
	FROM portfolios
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]*domain.Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio during FindAllPortfolios: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio rows: %w", err)
	}
	return portfolios, nil
}

// DeletePortfolio removes a portfolio together with its trades, transactions,
// and history entries. The portfolio is the sole owner of its records, so the
// delete cascades inside a single database transaction.
func (r *Repository) DeletePortfolio(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction for portfolio %d: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM trade_history WHERE trade_id IN (SELECT id FROM trades WHERE portfolio_id = ?)`, id); err != nil {
		return fmt.Errorf("failed to delete history for portfolio %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE portfolio_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete trades for portfolio %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE portfolio_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transactions for portfolio %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete portfolio %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("portfolio %d not found for delete: %w", id, ports.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for portfolio %d: %w", id, err)
	}
	r.logger.Debug(ctx, "Portfolio deleted with owned records", map[string]interface{}{"portfolioID": id})
	return nil
}

// ApplyCashDelta atomically adjusts the cash ledger of a portfolio. The
// increments are evaluated server-side in one statement, so concurrent
// transactions against the same portfolio cannot lose updates. The WHERE
// clause rejects a withdrawal that would drive cash negative.
func (r *Repository) ApplyCashDelta(ctx context.Context, id int64, cashDelta, depositDelta, withdrawalDelta float64) error {
	return r.applyCashDelta(ctx, r.db, id, cashDelta, depositDelta, withdrawalDelta)
}

func (r *Repository) applyCashDelta(ctx context.Context, q dbtx, id int64, cashDelta, depositDelta, withdrawalDelta float64) error {
	const query = `
	UPDATE portfolios
	SET available_cash = available_cash + ?,
	    total_deposits = total_deposits + ?,
	    total_withdrawals = total_withdrawals + ?,
	    current_balance = initial_balance + realized_pnl
	WHERE id = ? AND available_cash + ? >= 0`

	result, err := q.ExecContext(ctx, query, cashDelta, depositDelta, withdrawalDelta, id, cashDelta)
	if err != nil {
		return fmt.Errorf("failed to apply cash delta to portfolio %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for cash delta on portfolio %d: %w", id, err)
	}
	if rowsAffected == 0 {
		// Distinguish a missing portfolio from a rejected overdraw. The count
		// query runs on the same connection scope so it is safe inside a
		// transaction with the single-connection pool.
		var count int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM portfolios WHERE id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("failed to check portfolio %d after rejected cash delta: %w", id, err)
		}
		if count == 0 {
			return fmt.Errorf("portfolio %d not found for cash delta: %w", id, ports.ErrNotFound)
		}
		return fmt.Errorf("cash delta %v rejected for portfolio %d: %w", cashDelta, id, ports.ErrInsufficientCash)
	}
	r.logger.Debug(ctx, "Cash delta applied", map[string]interface{}{"portfolioID": id, "cashDelta": cashDelta})
	return nil
}

// ApplyRealizedPnL atomically adds pnlDelta to the portfolio's realized P&L
// and refreshes the current_balance duplicate in the same statement.
func (r *Repository) ApplyRealizedPnL(ctx context.Context, id int64, pnlDelta float64) error {
	return r.applyRealizedPnL(ctx, r.db, id, pnlDelta)
}

func (r *Repository) applyRealizedPnL(ctx context.Context, q dbtx, id int64, pnlDelta float64) error {
	const query = `
	UPDATE portfolios
	SET realized_pnl = realized_pnl + ?,
	    current_balance = initial_balance + realized_pnl + ?
	WHERE id = ?`

	result, err := q.ExecContext(ctx, query, pnlDelta, pnlDelta, id)
	if err != nil {
		return fmt.Errorf("failed to apply realized P&L to portfolio %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for realized P&L on portfolio %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("portfolio %d not found for realized P&L: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Realized P&L applied", map[string]interface{}{"portfolioID": id, "pnlDelta": pnlDelta})
	return nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, t *domain.Trade) (int64, error) {
	return r.insertTrade(ctx, r.db, t)
}

func (r *Repository) insertTrade(ctx context.Context, q dbtx, t *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (portfolio_id, parent_id, symbol, side, status, entry_price, quantity,
	                    exit_price, realized_pnl, entry_time, exit_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var parentID sql.NullInt64
	if t.ParentID != 0 {
		parentID = sql.NullInt64{Int64: t.ParentID, Valid: true}
	}
	var exitTime sql.NullTime
	if !t.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: t.ExitTime, Valid: true}
	}

	result, err := q.ExecContext(ctx, query,
		t.PortfolioID, parentID, t.Symbol, t.Side, t.Status, t.EntryPrice, t.Quantity,
		t.ExitPrice, t.RealizedPnL, t.EntryTime, exitTime)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for symbol %s: %w", t.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", t.Symbol, err)
	}
	t.ID = id
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "symbol": t.Symbol, "status": t.Status})
	return id, nil
}

// UpdateTrade modifies an existing trade based on its ID.
func (r *Repository) UpdateTrade(ctx context.Context, t *domain.Trade) error {
	return r.updateTrade(ctx, r.db, t)
}

func (r *Repository) updateTrade(ctx context.Context, q dbtx, t *domain.Trade) error {
	const query = `
	UPDATE trades
	SET symbol = ?, side = ?, status = ?, entry_price = ?, quantity = ?,
	    exit_price = ?, realized_pnl = ?, entry_time = ?, exit_time = ?
	WHERE id = ?`

	var exitTime sql.NullTime
	if !t.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: t.ExitTime, Valid: true}
	}

	result, err := q.ExecContext(ctx, query,
		t.Symbol, t.Side, t.Status, t.EntryPrice, t.Quantity,
		t.ExitPrice, t.RealizedPnL, t.EntryTime, exitTime,
		t.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %d: %w", t.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade ID %d: %w", t.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", t.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": t.ID, "symbol": t.Symbol, "status": t.Status})
	return nil
}

// SettleClose persists a closed trade and folds its realized P&L into the
// owning portfolio in one database transaction. A failure on either side
// leaves both the trade and the portfolio untouched.
func (r *Repository) SettleClose(ctx context.Context, t *domain.Trade) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settle transaction for trade %d: %w", t.ID, err)
	}
	defer tx.Rollback()

	if err := r.updateTrade(ctx, tx, t); err != nil {
		return err
	}
	if err := r.applyRealizedPnL(ctx, tx, t.PortfolioID, t.RealizedPnL); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settle for trade %d: %w", t.ID, err)
	}
	r.logger.Debug(ctx, "Trade close settled", map[string]interface{}{"tradeID": t.ID, "realizedPnL": t.RealizedPnL})
	return nil
}

// SettlePartialClose inserts the closed slice, shrinks the parent to its
// remaining quantity, and applies the slice's realized P&L, all in one
// database transaction. The slice is never visible without the shrunken
// parent, so the quantity cannot be double-counted.
func (r *Repository) SettlePartialClose(ctx context.Context, slice, parent *domain.Trade) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin partial-close transaction for trade %d: %w", parent.ID, err)
	}
	defer tx.Rollback()

	id, err := r.insertTrade(ctx, tx, slice)
	if err != nil {
		return 0, err
	}
	if err := r.updateTrade(ctx, tx, parent); err != nil {
		return 0, err
	}
	if err := r.applyRealizedPnL(ctx, tx, parent.PortfolioID, slice.RealizedPnL); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit partial close for trade %d: %w", parent.ID, err)
	}
	r.logger.Debug(ctx, "Partial close settled", map[string]interface{}{"tradeID": parent.ID, "sliceID": id, "realizedPnL": slice.RealizedPnL})
	return id, nil
}

// FindTradeByID retrieves a trade by its unique ID.
func (r *Repository) FindTradeByID(ctx context.Context, id int64) (*domain.Trade, error) {
	const query = `
	SELECT id, portfolio_id, COALESCE(parent_id, 0), symbol, side, status, entry_price, quantity,
	       COALESCE(exit_price, 0), COALESCE(realized_pnl, 0), entry_time, exit_time
	FROM trades
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w", id, err)
	}
	return t, nil
}

// FindTradesByPortfolio retrieves all trades for a portfolio, ordered by entry time descending.
func (r *Repository) FindTradesByPortfolio(ctx context.Context, portfolioID int64) ([]*domain.Trade, error) {
	const query = `
	SELECT id, portfolio_id, COALESCE(parent_id, 0), symbol, side, status, entry_price, quantity,
	       COALESCE(exit_price, 0), COALESCE(realized_pnl, 0), entry_time, exit_time
	FROM trades
	WHERE portfolio_id = ?
	ORDER BY entry_time DESC`

	return r.queryTrades(ctx, query, portfolioID)
}

// FindTradesByStatus retrieves trades for a portfolio filtered by status.
func (r *Repository) FindTradesByStatus(ctx context.Context, portfolioID int64, status domain.TradeStatus) ([]*domain.Trade, error) {
	const query = `
	SELECT id, portfolio_id, COALESCE(parent_id, 0), symbol, side, status, entry_price, quantity,
	       COALESCE(exit_price, 0), COALESCE(realized_pnl, 0), entry_time, exit_time
	FROM trades
	WHERE portfolio_id = ? AND status = ?
	ORDER BY entry_time DESC`

	return r.queryTrades(ctx, query, portfolioID, status)
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- TransactionRepository Implementation ---

// CreateTransaction saves a new cash transaction and returns its assigned ID.
// There is no corresponding update or delete: the cash ledger is append-only.
func (r *Repository) CreateTransaction(ctx context.Context, tx *domain.Transaction) (int64, error) {
	return r.insertTransaction(ctx, r.db, tx)
}

func (r *Repository) insertTransaction(ctx context.Context, q dbtx, tx *domain.Transaction) (int64, error) {
	const query = `
	INSERT INTO transactions (portfolio_id, type, amount, note, created_at)
	VALUES (?, ?, ?, ?, ?)`

	result, err := q.ExecContext(ctx, query, tx.PortfolioID, tx.Type, tx.Amount, tx.Note, tx.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction for portfolio %d: %w", tx.PortfolioID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for transaction: %w", err)
	}
	tx.ID = id
	r.logger.Debug(ctx, "Transaction created", map[string]interface{}{"transactionID": id, "type": tx.Type, "amount": tx.Amount})
	return id, nil
}

// RecordCashMovement inserts the ledger row and applies its cash delta to
// the owning portfolio in one database transaction. A rejected delta
// (overdraw, missing portfolio) leaves no ledger row behind, and a failed
// insert leaves the cash untouched.
func (r *Repository) RecordCashMovement(ctx context.Context, mv *domain.Transaction) (int64, error) {
	var cashDelta, depositDelta, withdrawalDelta float64
	switch mv.Type {
	case domain.Deposit:
		cashDelta, depositDelta = mv.Amount, mv.Amount
	case domain.Withdrawal:
		cashDelta, withdrawalDelta = -mv.Amount, mv.Amount
	default:
		return 0, fmt.Errorf("unknown transaction type %q: %w", mv.Type, ports.ErrInvalidArgument)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin cash movement transaction for portfolio %d: %w", mv.PortfolioID, err)
	}
	defer tx.Rollback()

	if err := r.applyCashDelta(ctx, tx, mv.PortfolioID, cashDelta, depositDelta, withdrawalDelta); err != nil {
		return 0, err
	}
	id, err := r.insertTransaction(ctx, tx, mv)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cash movement for portfolio %d: %w", mv.PortfolioID, err)
	}
	r.logger.Debug(ctx, "Cash movement recorded", map[string]interface{}{"portfolioID": mv.PortfolioID, "type": mv.Type, "amount": mv.Amount})
	return id, nil
}

// FindTransactionsByPortfolio retrieves all transactions for a portfolio,
// ordered by creation time ascending.
func (r *Repository) FindTransactionsByPortfolio(ctx context.Context, portfolioID int64) ([]*domain.Transaction, error) {
	const query = `
	SELECT id, portfolio_id, type, amount, note, created_at
	FROM transactions
	WHERE portfolio_id = ?
	ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx := &domain.Transaction{}
		var txType string
		if err := rows.Scan(&tx.ID, &tx.PortfolioID, &txType, &tx.Amount, &tx.Note, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		tx.Type = domain.TransactionType(txType)
		txs = append(txs, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txs, nil
}

// --- HistoryRepository Implementation ---

// AppendHistory saves a new history entry and returns its assigned ID.
func (r *Repository) AppendHistory(ctx context.Context, entry *domain.HistoryEntry) (int64, error) {
	const query = `
	INSERT INTO trade_history (trade_id, event, quantity, price, pnl, note, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		entry.TradeID, entry.Event, entry.Quantity, entry.Price, entry.PnL, entry.Note, entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history entry for trade %d: %w", entry.TradeID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for history entry: %w", err)
	}
	entry.ID = id
	r.logger.Debug(ctx, "History entry appended", map[string]interface{}{"entryID": id, "tradeID": entry.TradeID, "event": entry.Event})
	return id, nil
}

// FindHistoryByTrade retrieves all history entries for a trade, ordered by
// creation time ascending.
func (r *Repository) FindHistoryByTrade(ctx context.Context, tradeID int64) ([]*domain.HistoryEntry, error) {
	const query = `
	SELECT id, trade_id, event, quantity, price, pnl, note, created_at
	FROM trade_history
	WHERE trade_id = ?
	ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for trade %d: %w", tradeID, err)
	}
	defer rows.Close()

	entries := make([]*domain.HistoryEntry, 0)
	for rows.Next() {
		e := &domain.HistoryEntry{}
		var event string
		if err := rows.Scan(&e.ID, &e.TradeID, &event, &e.Quantity, &e.Price, &e.PnL, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Event = domain.HistoryEvent(event)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return entries, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting the write helpers
// run standalone or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// scanPortfolio scans a row into a domain.Portfolio struct.
func scanPortfolio(s scanner) (*domain.Portfolio, error) {
	p := &domain.Portfolio{}
	err := s.Scan(
		&p.ID, &p.Name, &p.Currency, &p.InitialBalance, &p.AvailableCash, &p.CurrentBalance,
		&p.TotalDeposits, &p.TotalWithdrawals, &p.RealizedPnL, &p.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return p, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, status string
	var exitTime sql.NullTime
	err := s.Scan(
		&t.ID, &t.PortfolioID, &t.ParentID, &t.Symbol, &side, &status, &t.EntryPrice, &t.Quantity,
		&t.ExitPrice, &t.RealizedPnL, &t.EntryTime, &exitTime)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if exitTime.Valid {
		t.ExitTime = exitTime.Time
	}
	t.Side = domain.TradeSide(side)
	t.Status = domain.TradeStatus(status)
	return t, nil
}
