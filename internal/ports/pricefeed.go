package ports

import "context"

// PriceFeed defines the interface for fetching current market prices.
// Feeds come with no availability guarantee: callers must treat any error
// as "price unknown" and fall back to the entry price, never as fatal.
type PriceFeed interface {
	// Quote retrieves the most recent price for a symbol.
	// Returns ErrQuoteUnavailable (wrapped) when the feed has no price for
	// the symbol.
	Quote(ctx context.Context, symbol string) (float64, error)

	// Ping checks connectivity to the upstream feed.
	Ping(ctx context.Context) error
}
