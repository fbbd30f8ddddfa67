package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradejournal/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" (StdLogger) or "json" (ZeroLogger)

	// Price feed (public endpoints only; keys optional, raise rate limits)
	BinanceAPIKey    string
	BinanceSecretKey string
	IsTestnet        bool
	QuoteTimeout     time.Duration
	PriceCacheTTL    time.Duration

	// Fee schedule overrides. Percentage rates are market constants and
	// live in the fees package; the commission terms vary per broker.
	CommissionRate float64
	MinCommission  float64
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/tradejournal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be 'text' or 'json', got %q", cfg.LogFormat))
	}

	// Price feed
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	quoteTimeoutSeconds := getEnvAsInt("QUOTE_TIMEOUT_SECONDS", 5)
	if quoteTimeoutSeconds <= 0 {
		errs = append(errs, "QUOTE_TIMEOUT_SECONDS must be positive")
	}
	cfg.QuoteTimeout = time.Duration(quoteTimeoutSeconds) * time.Second

	cacheTTLSeconds := getEnvAsInt("PRICE_CACHE_TTL_SECONDS", 300)
	if cacheTTLSeconds < 0 {
		errs = append(errs, "PRICE_CACHE_TTL_SECONDS cannot be negative")
	}
	cfg.PriceCacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	// Fee schedule
	cfg.CommissionRate, err = getEnvAsFloatRequired("COMMISSION_RATE", 0.0025)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_RATE: %v", err))
	} else if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1.0 {
		errs = append(errs, "COMMISSION_RATE must be between 0.0 and 1.0")
	}

	cfg.MinCommission, err = getEnvAsFloatRequired("MIN_COMMISSION", 20.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_COMMISSION: %v", err))
	} else if cfg.MinCommission < 0 {
		errs = append(errs, "MIN_COMMISSION cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
