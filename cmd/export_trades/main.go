package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"tradejournal/config"
	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/sqlite"
	"tradejournal/internal/app"
	"tradejournal/internal/pricecache"
)

func main() {
	portfolioID := flag.Int64("portfolio", 0, "portfolio ID to export")
	outFile := flag.String("out", "", "output CSV file (default trades_<id>.csv)")
	flag.Parse()

	if *portfolioID <= 0 {
		log.Fatal("FATAL: -portfolio is required and must be positive")
	}
	filename := *outFile
	if filename == "" {
		filename = fmt.Sprintf("trades_%d.csv", *portfolioID)
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// 4. Initialize Application Service (no price feed needed for exports)
	journal, err := app.NewJournalService(cfg, appLogger, repo, repo, repo, repo, nil, pricecache.New(cfg.PriceCacheTTL))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}

	if err := journal.ExportTrades(context.Background(), *portfolioID, filename); err != nil {
		log.Fatalf("FATAL: Failed to export trades: %v", err)
	}
	fmt.Printf("Exported trades for portfolio %d to %s\n", *portfolioID, filename)
}
