package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"tradejournal/internal/domain"
)

func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"trade_id", "portfolio_id", "symbol", "side", "status", "quantity", "entry_price", "exit_price", "entry_time", "exit_time", "realized_pnl"})

	for _, t := range trades {
		exitPrice := ""
		exitTime := ""
		realized := ""
		if t.Status == domain.StatusClosed {
			exitPrice = strconv.FormatFloat(t.ExitPrice, 'f', -1, 64)
			exitTime = t.ExitTime.Format(time.RFC3339)
			realized = strconv.FormatFloat(t.RealizedPnL, 'f', -1, 64)
		}
		writer.Write([]string{
			strconv.FormatInt(t.ID, 10),
			strconv.FormatInt(t.PortfolioID, 10),
			t.Symbol,
			string(t.Side),
			string(t.Status),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			exitPrice,
			t.EntryTime.Format(time.RFC3339),
			exitTime,
			realized,
		})
	}
	return writer.Error()
}
