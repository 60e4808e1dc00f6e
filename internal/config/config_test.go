package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("PRICE_ROW_CAP", "")
	t.Setenv("STALE_RUN_AFTER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabasePath)
	assert.Equal(t, 10000, cfg.PriceRowCap)
	assert.Equal(t, time.Hour, cfg.StaleRunAfter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/foresight.db")
	t.Setenv("PRICE_ROW_CAP", "2500")
	t.Setenv("STALE_RUN_AFTER", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/foresight.db", cfg.DatabasePath)
	assert.Equal(t, 2500, cfg.PriceRowCap)
	assert.Equal(t, 30*time.Minute, cfg.StaleRunAfter)
}

func TestLoad_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("PRICE_ROW_CAP", "not-a-number")
	t.Setenv("STALE_RUN_AFTER", "eventually")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.PriceRowCap)
	assert.Equal(t, time.Hour, cfg.StaleRunAfter)
}

func TestDefaultParams_EnvOverrides(t *testing.T) {
	t.Setenv("STRATEGY_MIN_EDGE", "0.08")
	t.Setenv("STRATEGY_TAKE_PROFIT", "0.20")
	t.Setenv("STRATEGY_WIN_PROBABILITY", "0.60")

	params := DefaultParams()

	assert.Equal(t, 0.08, params.MinEdge)
	assert.Equal(t, 0.20, params.TakeProfit)
	assert.Equal(t, 0.60, params.WinProbability)

	// Untouched fields keep their documented defaults.
	assert.Equal(t, 0.05, params.PositionPct)
	assert.Equal(t, 0.10, params.StopLoss)
	assert.Equal(t, 0.08, params.AvgReturn)
	assert.Equal(t, 2.0, params.TradeFrequency)
}
