package backtest

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func reportMetrics() *Metrics {
	return &Metrics{
		FinalCapital:   decimal.NewFromInt(11250),
		TotalReturnPct: 12.5,
		WinRate:        0.6,
		ProfitFactor:   2.1,
		TotalTrades:    5,
		MaxDrawdownPct: 4.2,
		SharpeRatio:    1.8,
	}
}

func TestGenerateReport(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{
			MarketID: "mkt-1", Side: SideYes, SignalStrength: SignalStrong,
			EntryPrice: decimal.NewFromFloat(0.40), ExitPrice: decimal.NewFromFloat(0.50),
			Size: decimal.NewFromInt(500), PnL: decimal.NewFromInt(125),
			EntryTime: start, ExitTime: start.Add(time.Hour),
		},
	}

	report := NewReporter().GenerateReport("june run", SourceHistorical, reportMetrics(), trades)

	assert.Contains(t, report, "BACKTEST PERFORMANCE REPORT")
	assert.Contains(t, report, "june run")
	assert.Contains(t, report, "historical")
	assert.Contains(t, report, "Final Capital:        $11250.00")
	assert.Contains(t, report, "Total Return:         12.50%")
	assert.Contains(t, report, "Win Rate:             60.00%")
	assert.Contains(t, report, "mkt-1 YES")
	assert.Contains(t, report, "PnL=$125.00")
}

func TestGenerateReport_TruncatesToLastTen(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	trades := make([]Trade, 15)
	for i := range trades {
		trades[i] = Trade{
			MarketID: "mkt-n", Side: SideNo, SignalStrength: SignalMedium,
			EntryPrice: decimal.NewFromFloat(0.5), ExitPrice: decimal.NewFromFloat(0.5),
			Size: decimal.NewFromInt(100), PnL: decimal.NewFromInt(1),
			EntryTime: start.Add(time.Duration(i) * time.Hour),
			ExitTime:  start.Add(time.Duration(i+1) * time.Hour),
		}
	}

	report := NewReporter().GenerateReport("big run", SourceHistorical, reportMetrics(), trades)
	assert.Equal(t, 10, strings.Count(report, "mkt-n"))
}

func TestGenerateSummary(t *testing.T) {
	summary := NewReporter().GenerateSummary(reportMetrics())
	assert.Equal(t,
		"Return: 12.50% | Trades: 5 | Win Rate: 60.00% | Max DD: 4.20% | Sharpe: 1.80 | Profit Factor: 2.10",
		summary)
}

func TestGenerateTradeLog(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{
			MarketID: "mkt-win", Side: SideYes, SignalStrength: SignalStrong,
			EntryPrice: decimal.NewFromFloat(0.40), ExitPrice: decimal.NewFromFloat(0.50),
			Size: decimal.NewFromInt(500), PnL: decimal.NewFromInt(125),
			EntryTime: start, ExitTime: start.Add(time.Hour),
		},
		{
			MarketID: "mkt-loss", Side: SideNo, SignalStrength: SignalMedium,
			EntryPrice: decimal.NewFromFloat(0.60), ExitPrice: decimal.NewFromFloat(0.66),
			Size: decimal.NewFromInt(500), PnL: decimal.NewFromInt(-50),
			EntryTime: start, ExitTime: start.Add(2 * time.Hour),
		},
	}

	log := NewReporter().GenerateTradeLog(trades)
	assert.Contains(t, log, "Trade #1")
	assert.Contains(t, log, "Trade #2")
	assert.Contains(t, log, "PROFIT")
	assert.Contains(t, log, "LOSS")
	assert.Contains(t, log, "mkt-win")
	assert.Contains(t, log, "mkt-loss")
}
