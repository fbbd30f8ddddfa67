package position

import (
	"errors"
	"math"
	"testing"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
)

func openTrade(t *testing.T, symbol string, side domain.TradeSide, qty, entry float64) *domain.Trade {
	t.Helper()
	tr, err := domain.NewTrade(1, symbol, side, qty, entry, time.Now())
	if err != nil {
		t.Fatalf("Expected no error building trade, got %v", err)
	}
	return tr
}

func TestAggregateMissingPriceFallsBackToEntry(t *testing.T) {
	sched := fees.DefaultSchedule()
	trades := []*domain.Trade{openTrade(t, "JFC", domain.Long, 10, 100)}

	noQuotes := func(string) (float64, bool) { return 0, false }
	summary, err := Aggregate(trades, noQuotes, sched)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if summary.TotalMarketValue != 1000 {
		t.Errorf("Expected market value 1000 at entry-price fallback, got %f", summary.TotalMarketValue)
	}
	if !summary.Estimated {
		t.Error("Expected the summary to be flagged as estimated")
	}

	// At entry price the gross move is zero, so unrealized P&L is exactly
	// the exit-side fees — a defined fallback, not zero and not an error.
	want, err := pnl.MarkToMarket(100, 100, 10, domain.Long, sched)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.Abs(summary.TotalUnrealizedPnL-want) > 1e-9 {
		t.Errorf("Expected unrealized P&L %f, got %f", want, summary.TotalUnrealizedPnL)
	}
	if summary.TotalUnrealizedPnL == 0 {
		t.Error("Expected non-zero unrealized P&L under fallback pricing")
	}
}

func TestAggregateGroupsBySymbol(t *testing.T) {
	sched := fees.DefaultSchedule()
	trades := []*domain.Trade{
		openTrade(t, "JFC", domain.Long, 1000, 200),
		openTrade(t, "JFC", domain.Long, 500, 210),
		openTrade(t, "ALI", domain.Long, 2000, 30),
	}
	quotes := func(symbol string) (float64, bool) {
		switch symbol {
		case "JFC":
			return 220, true
		case "ALI":
			return 28, true
		}
		return 0, false
	}

	summary, err := Aggregate(trades, quotes, sched)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(summary.BySymbol) != 2 {
		t.Fatalf("Expected 2 symbols, got %d", len(summary.BySymbol))
	}
	jfc := summary.BySymbol["JFC"]
	if jfc.Quantity != 1500 {
		t.Errorf("Expected JFC quantity 1500, got %f", jfc.Quantity)
	}
	if jfc.MarketValue != 1500*220 {
		t.Errorf("Expected JFC market value %f, got %f", 1500.0*220, jfc.MarketValue)
	}
	if jfc.CostBasis != 1000*200+500*210 {
		t.Errorf("Expected JFC cost basis %f, got %f", 1000.0*200+500*210, jfc.CostBasis)
	}
	if jfc.Estimated {
		t.Error("Expected JFC position to use a live quote")
	}

	wantTotal := 1500*220.0 + 2000*28.0
	if math.Abs(summary.TotalMarketValue-wantTotal) > 1e-9 {
		t.Errorf("Expected total market value %f, got %f", wantTotal, summary.TotalMarketValue)
	}
	if summary.Estimated {
		t.Error("Expected no estimation flag when all quotes are live")
	}
}

func TestAggregateShortUnrealized(t *testing.T) {
	sched := fees.DefaultSchedule()
	trades := []*domain.Trade{openTrade(t, "BTCUSDT", domain.Short, 10, 100)}
	quotes := func(string) (float64, bool) { return 90, true }

	summary, err := Aggregate(trades, quotes, sched)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want, err := pnl.MarkToMarket(100, 90, 10, domain.Short, sched)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.Abs(summary.TotalUnrealizedPnL-want) > 1e-9 {
		t.Errorf("Expected unrealized P&L %f, got %f", want, summary.TotalUnrealizedPnL)
	}
}

func TestAggregateRejectsClosedTrades(t *testing.T) {
	sched := fees.DefaultSchedule()
	tr := openTrade(t, "JFC", domain.Long, 10, 100)
	if err := tr.Close(110, 90, time.Now()); err != nil {
		t.Fatalf("Expected no error closing trade, got %v", err)
	}

	_, err := Aggregate([]*domain.Trade{tr}, nil, sched)
	if !errors.Is(err, ports.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for closed trade, got %v", err)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	summary, err := Aggregate(nil, nil, fees.DefaultSchedule())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.TotalMarketValue != 0 || summary.TotalUnrealizedPnL != 0 || len(summary.BySymbol) != 0 {
		t.Errorf("Expected zeroed summary for empty input, got %+v", summary)
	}
}
