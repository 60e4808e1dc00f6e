package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/oddsmith/foresight/pkg/utils"
	"github.com/shopspring/decimal"
)

const (
	// annualizationPeriods is the trading-periods-per-year constant used for
	// Sharpe and Sortino. It is applied uniformly regardless of the run's
	// actual duration.
	annualizationPeriods = 252

	// maxEquityPoints bounds the stored equity curve.
	maxEquityPoints = 100

	// profitFactorSentinel stands in for an infinite profit factor when a
	// run has winners but no losers.
	profitFactorSentinel = 999.0
)

// CalculateMetrics derives the full risk/performance figure set for a
// completed simulation. Every ratio guards its divisions explicitly and
// degrades to zero: a degenerate run still produces a well-formed result.
func CalculateMetrics(initialCapital decimal.Decimal, result *Result, start, end time.Time) *Metrics {
	m := &Metrics{
		FinalCapital: result.FinalCapital,
		TotalTrades:  len(result.Trades),
		EquityCurve:  DownsampleEquityCurve(result.EquityCurve, maxEquityPoints),
	}

	initial := initialCapital.InexactFloat64()
	final := result.FinalCapital.InexactFloat64()
	if initial > 0 {
		m.TotalReturnPct = (final - initial) / initial * 100
	}

	pnls := make([]float64, len(result.Trades))
	var losses []float64
	var wins int
	var grossProfit, grossLoss float64
	for i, trade := range result.Trades {
		pnl := trade.PnL.InexactFloat64()
		pnls[i] = pnl
		if pnl > 0 {
			wins++
			grossProfit += pnl
		} else if pnl < 0 {
			grossLoss += -pnl
			losses = append(losses, pnl)
		}
	}

	if len(pnls) > 0 {
		m.WinRate = float64(wins) / float64(len(pnls))
		m.AvgTradePnL = utils.Mean(pnls)

		switch {
		case grossLoss > 0:
			m.ProfitFactor = grossProfit / grossLoss
		case grossProfit > 0:
			m.ProfitFactor = profitFactorSentinel
		}
	}

	if std := utils.PopulationStdDev(pnls); std > 0 {
		m.SharpeRatio = m.AvgTradePnL / std * math.Sqrt(annualizationPeriods)
	}
	if downside := utils.RootMeanSquare(losses); downside > 0 {
		m.SortinoRatio = m.AvgTradePnL / downside * math.Sqrt(annualizationPeriods)
	}

	m.MaxDrawdownPct = maxDrawdownPct(initial, result.Trades)

	days := int(end.Sub(start).Hours() / 24)
	if days < 1 {
		days = 1
	}
	m.AnnualizedReturnPct = m.TotalReturnPct * 365 / float64(days)

	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = m.AnnualizedReturnPct / m.MaxDrawdownPct
	}

	return m
}

// maxDrawdownPct tracks the running capital peak trade-by-trade in
// chronological exit order and returns the deepest peak-to-trough decline
// as a percentage of the peak.
func maxDrawdownPct(initial float64, trades []Trade) float64 {
	ordered := make([]Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	equity := initial
	peak := initial
	var maxDD float64
	for _, trade := range ordered {
		equity += trade.PnL.InexactFloat64()
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// BuildEquityCurve derives the equity curve from trades in chronological
// exit order, anchored at the window start with the initial capital. Samples
// sharing a timestamp collapse into the later cumulative value so the curve
// stays strictly increasing in time.
func BuildEquityCurve(start time.Time, initialCapital decimal.Decimal, trades []Trade) []EquityPoint {
	curve := []EquityPoint{{Time: start, Equity: initialCapital}}

	ordered := make([]Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	equity := initialCapital
	for _, trade := range ordered {
		equity = equity.Add(trade.PnL)
		point := EquityPoint{Time: trade.ExitTime, Equity: equity}
		if last := &curve[len(curve)-1]; !trade.ExitTime.After(last.Time) {
			last.Equity = equity
			continue
		}
		curve = append(curve, point)
	}
	return curve
}

// DownsampleEquityCurve reduces a curve to at most max points by keeping
// every ceil(n/max)-th sample, preserving the first and last.
func DownsampleEquityCurve(points []EquityPoint, max int) []EquityPoint {
	if max <= 0 || len(points) <= max {
		out := make([]EquityPoint, len(points))
		copy(out, points)
		return out
	}

	step := (len(points) + max - 1) / max
	out := make([]EquityPoint, 0, max)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	out[len(out)-1] = points[len(points)-1]
	return out
}
