package config

import (
	"os"
	"strconv"
	"time"

	"github.com/oddsmith/foresight/internal/backtest"
)

// AppConfig holds application-wide configuration
type AppConfig struct {
	DatabasePath  string        // empty means in-memory store
	PriceRowCap   int           // maximum rows fetched per price query
	StaleRunAfter time.Duration // RUNNING runs older than this are failed on recovery
}

// Load loads application configuration from environment variables
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		DatabasePath:  "",
		PriceRowCap:   10000,
		StaleRunAfter: time.Hour,
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		cfg.DatabasePath = path
	}
	if val := parseIntEnv("PRICE_ROW_CAP", cfg.PriceRowCap); val > 0 {
		cfg.PriceRowCap = val
	}
	if duration := os.Getenv("STALE_RUN_AFTER"); duration != "" {
		if parsed, err := time.ParseDuration(duration); err == nil && parsed > 0 {
			cfg.StaleRunAfter = parsed
		}
	}

	return cfg, nil
}

// DefaultParams returns strategy parameters with environment overrides
// applied on top of the documented defaults.
func DefaultParams() backtest.StrategyParams {
	params := backtest.DefaultStrategyParams()

	if val := parseFloatEnv("STRATEGY_MIN_EDGE", params.MinEdge); val > 0 {
		params.MinEdge = val
	}
	if val := parseFloatEnv("STRATEGY_POSITION_PCT", params.PositionPct); val > 0 {
		params.PositionPct = val
	}
	if val := parseFloatEnv("STRATEGY_TAKE_PROFIT", params.TakeProfit); val > 0 {
		params.TakeProfit = val
	}
	if val := parseFloatEnv("STRATEGY_STOP_LOSS", params.StopLoss); val > 0 {
		params.StopLoss = val
	}
	if val := parseFloatEnv("STRATEGY_WIN_PROBABILITY", params.WinProbability); val > 0 {
		params.WinProbability = val
	}
	if val := parseFloatEnv("STRATEGY_AVG_RETURN", params.AvgReturn); val > 0 {
		params.AvgReturn = val
	}
	if val := parseFloatEnv("STRATEGY_TRADE_FREQUENCY", params.TradeFrequency); val > 0 {
		params.TradeFrequency = val
	}

	return params
}

// parseIntEnv parses an integer environment variable
func parseIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// parseFloatEnv parses a float environment variable
func parseFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
