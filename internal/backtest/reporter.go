package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reporter generates reports from backtest results
type Reporter struct{}

// NewReporter creates a new reporter
func NewReporter() *Reporter {
	return &Reporter{}
}

// GenerateReport generates a formatted text report
func (r *Reporter) GenerateReport(name string, source ModelSource, metrics *Metrics, trades []Trade) string {
	var sb strings.Builder

	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString("           BACKTEST PERFORMANCE REPORT\n")
	sb.WriteString("═══════════════════════════════════════════════════════\n\n")

	sb.WriteString(fmt.Sprintf("Run:                  %s\n", name))
	sb.WriteString(fmt.Sprintf("Model Source:         %s\n\n", source))

	// Overall Performance
	sb.WriteString("📊 OVERALL PERFORMANCE\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Final Capital:        $%s\n", metrics.FinalCapital.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Total Return:         %.2f%%\n", metrics.TotalReturnPct))
	sb.WriteString(fmt.Sprintf("Annualized Return:    %.2f%%\n", metrics.AnnualizedReturnPct))
	sb.WriteString(fmt.Sprintf("Max Drawdown:         %.2f%%\n", metrics.MaxDrawdownPct))
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:         %.2f\n", metrics.SharpeRatio))
	sb.WriteString(fmt.Sprintf("Sortino Ratio:        %.2f\n", metrics.SortinoRatio))
	sb.WriteString(fmt.Sprintf("Calmar Ratio:         %.2f\n\n", metrics.CalmarRatio))

	// Trade Statistics
	sb.WriteString("📈 TRADE STATISTICS\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total Trades:         %d\n", metrics.TotalTrades))
	sb.WriteString(fmt.Sprintf("Win Rate:             %.2f%%\n", metrics.WinRate*100))
	sb.WriteString(fmt.Sprintf("Profit Factor:        %.2f\n", metrics.ProfitFactor))
	sb.WriteString(fmt.Sprintf("Avg Trade P&L:        $%.2f\n\n", metrics.AvgTradePnL))

	// Recent Trades
	if len(trades) > 0 {
		sb.WriteString("📋 RECENT TRADES (Last 10)\n")
		sb.WriteString("───────────────────────────────────────────────────────\n")

		start := len(trades) - 10
		if start < 0 {
			start = 0
		}

		for i := start; i < len(trades); i++ {
			trade := trades[i]
			symbol := "📈"
			if trade.PnL.LessThan(decimal.Zero) {
				symbol = "📉"
			}
			sb.WriteString(fmt.Sprintf("%s %s %s %s: Entry=%s Exit=%s PnL=$%s [%s]\n",
				symbol,
				trade.EntryTime.Format("01-02 15:04"),
				trade.MarketID,
				trade.Side,
				trade.EntryPrice.StringFixed(4),
				trade.ExitPrice.StringFixed(4),
				trade.PnL.StringFixed(2),
				trade.SignalStrength,
			))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("═══════════════════════════════════════════════════════\n")

	return sb.String()
}

// GenerateSummary generates a short summary
func (r *Reporter) GenerateSummary(metrics *Metrics) string {
	return fmt.Sprintf(
		"Return: %.2f%% | Trades: %d | Win Rate: %.2f%% | Max DD: %.2f%% | Sharpe: %.2f | Profit Factor: %.2f",
		metrics.TotalReturnPct,
		metrics.TotalTrades,
		metrics.WinRate*100,
		metrics.MaxDrawdownPct,
		metrics.SharpeRatio,
		metrics.ProfitFactor,
	)
}

// GenerateTradeLog generates a detailed trade log
func (r *Reporter) GenerateTradeLog(trades []Trade) string {
	var sb strings.Builder

	sb.WriteString("═══════════════════════════════════════════════════════════════\n")
	sb.WriteString("                           TRADE LOG\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════\n\n")

	for i, trade := range trades {
		sb.WriteString(fmt.Sprintf("Trade #%d\n", i+1))
		sb.WriteString("───────────────────────────────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("Market:          %s\n", trade.MarketID))
		sb.WriteString(fmt.Sprintf("Side:            %s\n", trade.Side))
		sb.WriteString(fmt.Sprintf("Entry Time:      %s\n", trade.EntryTime.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("Exit Time:       %s\n", trade.ExitTime.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("Entry Price:     %s\n", trade.EntryPrice.StringFixed(4)))
		sb.WriteString(fmt.Sprintf("Exit Price:      %s\n", trade.ExitPrice.StringFixed(4)))
		sb.WriteString(fmt.Sprintf("Size:            $%s\n", trade.Size.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("Signal:          %s\n", trade.SignalStrength))

		pnlStatus := "PROFIT ✓"
		if trade.PnL.LessThan(decimal.Zero) {
			pnlStatus = "LOSS ✗"
		}
		sb.WriteString(fmt.Sprintf("P&L:             $%s [%s]\n", trade.PnL.StringFixed(2), pnlStatus))
		sb.WriteString("\n")
	}

	sb.WriteString("═══════════════════════════════════════════════════════════════\n")

	return sb.String()
}
