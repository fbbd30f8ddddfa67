package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInconsistentState  = errors.New("operation conflicts with current state")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Ledger Specific Errors
	ErrInsufficientCash = errors.New("insufficient available cash")

	// Price Feed Specific Errors
	ErrQuoteUnavailable = errors.New("no quote available for symbol")
	ErrFeedUnavailable  = errors.New("price feed is unavailable")
	ErrRateLimited      = errors.New("API rate limit exceeded")
	ErrConnectionFailed = errors.New("failed to connect to the price feed")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
	ErrDeleteFailed   = errors.New("database delete failed")
)
