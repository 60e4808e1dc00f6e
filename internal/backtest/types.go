package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a simulated position on a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// SignalStrength is a qualitative tag describing how far the entry price
// deviated from the rolling mean.
type SignalStrength string

const (
	SignalStrong SignalStrength = "STRONG"
	SignalMedium SignalStrength = "MEDIUM"
)

// ModelSource identifies which simulation path produced a result.
type ModelSource string

const (
	SourceHistorical ModelSource = "historical"
	SourceStochastic ModelSource = "stochastic"
)

// PricePoint is one observed price sample for a binary market.
type PricePoint struct {
	Timestamp time.Time
	YesPrice  decimal.Decimal
	NoPrice   decimal.Decimal
	Volume    decimal.Decimal
}

// Series is the time-ordered price history of a single market.
type Series struct {
	MarketID string
	Points   []PricePoint
}

// Trade represents one simulated position, always closed before the run
// completes.
type Trade struct {
	ID             string
	MarketID       string
	Side           Side
	EntryPrice     decimal.Decimal
	ExitPrice      decimal.Decimal
	Size           decimal.Decimal
	PnL            decimal.Decimal
	EntryTime      time.Time
	ExitTime       time.Time
	SignalStrength SignalStrength
}

// EquityPoint represents a point in the equity curve
type EquityPoint struct {
	Time   time.Time       `json:"time"`
	Equity decimal.Decimal `json:"equity"`
}

// Result is the raw output of either simulation path, before metrics are
// derived.
type Result struct {
	Trades       []Trade
	EquityCurve  []EquityPoint
	FinalCapital decimal.Decimal
	Source       ModelSource
}

// StrategyParams holds the tunable parameters of the mean-reversion strategy
// and the stochastic fallback. Validated once at run start.
type StrategyParams struct {
	// Walk-forward entry/exit thresholds
	MinEdge     float64 `json:"min_edge"`     // minimum |price - rolling mean| to open a position
	PositionPct float64 `json:"position_pct"` // fraction of capital per position, capped at 10%
	TakeProfit  float64 `json:"take_profit"`  // close when unrealized return reaches this
	StopLoss    float64 `json:"stop_loss"`    // close when unrealized return falls below the negative of this

	// Stochastic fallback calibration
	WinProbability float64 `json:"win_probability"` // Bernoulli win probability per simulated trade
	AvgReturn      float64 `json:"avg_return"`      // center of the simulated per-trade return draw
	TradeFrequency float64 `json:"trade_frequency"` // mean simulated trades per calendar day

	// Seed makes the fallback reproducible; 0 means draw from entropy.
	Seed int64 `json:"seed,omitempty"`
}

// DefaultStrategyParams returns the documented parameter defaults.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		MinEdge:        0.05,
		PositionPct:    0.05,
		TakeProfit:     0.15,
		StopLoss:       0.10,
		WinProbability: 0.55,
		AvgReturn:      0.08,
		TradeFrequency: 2,
	}
}

// Validate checks parameter ranges before any simulation starts.
func (p StrategyParams) Validate() error {
	if p.MinEdge <= 0 {
		return fmt.Errorf("min_edge must be positive, got %v", p.MinEdge)
	}
	if p.PositionPct <= 0 || p.PositionPct > 1 {
		return fmt.Errorf("position_pct must be in (0, 1], got %v", p.PositionPct)
	}
	if p.TakeProfit <= 0 {
		return fmt.Errorf("take_profit must be positive, got %v", p.TakeProfit)
	}
	if p.StopLoss <= 0 {
		return fmt.Errorf("stop_loss must be positive, got %v", p.StopLoss)
	}
	if p.WinProbability < 0 || p.WinProbability > 1 {
		return fmt.Errorf("win_probability must be in [0, 1], got %v", p.WinProbability)
	}
	if p.AvgReturn <= 0 {
		return fmt.Errorf("avg_return must be positive, got %v", p.AvgReturn)
	}
	if p.TradeFrequency < 0 {
		return fmt.Errorf("trade_frequency must be non-negative, got %v", p.TradeFrequency)
	}
	return nil
}

// Metrics contains the derived risk/performance figures of a completed run.
type Metrics struct {
	FinalCapital        decimal.Decimal `json:"final_capital"`
	TotalReturnPct      float64         `json:"total_return_pct"`
	AnnualizedReturnPct float64         `json:"annualized_return_pct"`
	SharpeRatio         float64         `json:"sharpe_ratio"`
	SortinoRatio        float64         `json:"sortino_ratio"`
	CalmarRatio         float64         `json:"calmar_ratio"`
	MaxDrawdownPct      float64         `json:"max_drawdown_pct"`
	WinRate             float64         `json:"win_rate"`
	ProfitFactor        float64         `json:"profit_factor"`
	TotalTrades         int             `json:"total_trades"`
	AvgTradePnL         float64         `json:"avg_trade_pnl"`
	EquityCurve         []EquityPoint   `json:"equity_curve"`
}
