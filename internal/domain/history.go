package domain

import "time"

// HistoryEntry is one record in the append-only per-trade audit log.
// The core emits these on every lifecycle event and never reads them back
// for computation; they exist for display and audit.
type HistoryEntry struct {
	ID        int64        // Unique identifier (assigned by the repository)
	TradeID   int64        // Trade this entry belongs to
	Event     HistoryEvent // open, close, partial_close, add_position, remark
	Quantity  float64      // Quantity involved in the event (0 for remarks)
	Price     float64      // Price involved in the event (0 for remarks)
	PnL       float64      // Realized P&L recorded by the event, if any
	Note      string       // Free-form note (remark text)
	CreatedAt time.Time    // Event timestamp
}
