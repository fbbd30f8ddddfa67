package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"tradejournal/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.PriceFeed interface using the go-binance library.
// The journal only reads public ticker prices; API keys are optional and
// only matter for rate limits.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Binance price feed adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance price feed adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global binance.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance price feed configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance price feed configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1121: // Invalid symbol
			mappedErr = ports.ErrQuoteUnavailable
		default:
			mappedErr = ports.ErrFeedUnavailable
		}
		c.logger.Warn(ctx, "Binance API error", fields)
		return fmt.Errorf("%s: %s: %w", operation, apiErr.Message, mappedErr)
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", operation, ports.ErrContextCanceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, ports.ErrTimeout)
	}

	c.logger.Warn(ctx, "Binance request failed", fields)
	return fmt.Errorf("%s: %v: %w", operation, err, ports.ErrConnectionFailed)
}

// Quote retrieves the most recent ticker price for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, fmt.Errorf("symbol must not be empty: %w", ports.ErrInvalidArgument)
	}

	prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "Quote")
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no ticker price returned for %s: %w", symbol, ports.ErrQuoteUnavailable)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ticker price %q for %s: %w", prices[0].Price, symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive ticker price %v for %s: %w", price, symbol, ports.ErrQuoteUnavailable)
	}

	c.logger.Debug(ctx, "Quote fetched", map[string]interface{}{"symbol": symbol, "price": price})
	return price, nil
}

// Ping checks the connectivity to the Binance API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}
