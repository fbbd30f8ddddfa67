package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"

	"tradejournal/config"
	"tradejournal/internal/adapters/binanceclient"
	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/sqlite"
	"tradejournal/internal/app"
	"tradejournal/internal/ports"
	"tradejournal/internal/pricecache"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == "json" {
		appLogger = logger.NewZeroLogger(os.Stderr, cfg.LogLevel)
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Price Feed (Binance Adapter)
	feed, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.BinanceAPIKey,
		SecretKey:  cfg.BinanceSecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price feed")
		log.Fatalf("FATAL: Failed to initialize price feed: %v", err)
	}
	appLogger.Info(context.Background(), "Price feed initialized")

	// 5. Initialize Application Service
	journal, err := app.NewJournalService(
		cfg,
		appLogger,
		repo, // Pass the concrete implementation, service expects the interfaces
		repo,
		repo,
		repo,
		feed,
		pricecache.New(cfg.PriceCacheTTL),
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize journal service")
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}
	appLogger.Info(context.Background(), "Journal service initialized")

	// 6. Print a summary report for every portfolio
	ctx := context.Background()
	portfolios, err := journal.Portfolios(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to list portfolios")
		log.Fatalf("FATAL: Failed to list portfolios: %v", err)
	}
	if len(portfolios) == 0 {
		fmt.Println("No portfolios found. Create one first.")
		return
	}

	for _, p := range portfolios {
		summary, err := journal.PortfolioSummary(ctx, p.ID)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to compute portfolio summary", map[string]interface{}{"portfolioID": p.ID})
			continue
		}
		metrics, err := journal.Performance(ctx, p.ID)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to compute performance metrics", map[string]interface{}{"portfolioID": p.ID})
			continue
		}

		fmt.Printf("\n=== %s (%s) ===\n", p.Name, p.Currency)
		fmt.Printf("Available Cash:  %.2f\n", summary.AvailableCash)
		fmt.Printf("Equity Value:    %.2f\n", summary.EquityValue)
		fmt.Printf("Realized P&L:    %.2f\n", summary.RealizedPnL)
		fmt.Printf("Unrealized P&L:  %.2f", summary.UnrealizedPnL)
		if summary.PricesEstimated {
			fmt.Printf(" (estimated, some quotes unavailable)")
		}
		fmt.Println()
		fmt.Printf("Trades: %d | Win Rate: %.1f%% | Profit Factor: %.2f | Max Drawdown: %.1f%%\n",
			metrics.TotalTrades, metrics.WinRate*100, metrics.ProfitFactor, metrics.MaxDrawdown*100)

		fmt.Println("Allocation:")
		for _, slice := range summary.Allocation {
			fmt.Printf("  %-8s %.2f\n", slice.Label, slice.Value)
		}
	}
}
