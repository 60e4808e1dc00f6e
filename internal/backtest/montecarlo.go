package backtest

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oddsmith/foresight/internal/logger"
	"github.com/oddsmith/foresight/pkg/utils"
	"github.com/shopspring/decimal"
)

const (
	// fallbackMinSize is the smallest simulated position; draws below it are
	// skipped.
	fallbackMinSize = 10

	// tradeCountStdDev spreads the per-day trade count draw around the
	// configured frequency.
	tradeCountStdDev = 1.0
)

// fallbackMaxPositionPct caps simulated positions at 5% of capital.
var fallbackMaxPositionPct = decimal.NewFromFloat(0.05)

// StochasticSimulator produces a day-by-day Monte-Carlo trade sequence when
// no usable price history exists for the requested window. Its output is
// tagged SourceStochastic so it is never mistaken for a historical replay.
type StochasticSimulator struct {
	params StrategyParams
	rng    *rand.Rand
	log    *logger.Logger
}

// NewStochasticSimulator creates a simulator. A non-zero params.Seed makes
// the draw sequence reproducible; production callers leave it at zero.
func NewStochasticSimulator(params StrategyParams) *StochasticSimulator {
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &StochasticSimulator{
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
		log:    logger.Component("montecarlo"),
	}
}

// Run simulates every calendar day in [start, end) and returns the trade
// list, one equity sample per simulated day, and the final capital.
func (s *StochasticSimulator) Run(start, end time.Time, initialCapital decimal.Decimal) *Result {
	capital := initialCapital
	capitalFloor := decimal.NewFromInt(minTradeCapital)
	minSize := decimal.NewFromInt(fallbackMinSize)

	var trades []Trade
	curve := []EquityPoint{{Time: start, Equity: capital}}

	for day := start; day.Before(end); day = day.Add(24 * time.Hour) {
		count := int(math.Round(s.rng.NormFloat64()*tradeCountStdDev + s.params.TradeFrequency))
		if count < 0 {
			count = 0
		}

		for t := 0; t < count; t++ {
			if capital.LessThan(capitalFloor) {
				break
			}

			// Position size: uniform in [2%, 8%] of capital, capped at 5%.
			sizePct := decimal.NewFromFloat(0.02 + s.rng.Float64()*0.06)
			size := utils.MinDecimal(capital.Mul(sizePct), capital.Mul(fallbackMaxPositionPct))
			if size.LessThan(minSize) {
				continue
			}

			var ret float64
			if s.rng.Float64() < s.params.WinProbability {
				ret = s.uniform(0.02, 2*s.params.AvgReturn)
			} else {
				ret = -s.uniform(0.02, 1.5*s.params.AvgReturn)
			}
			pnl := size.Mul(decimal.NewFromFloat(ret)).Round(8)

			side := SideYes
			if s.rng.Intn(2) == 1 {
				side = SideNo
			}

			entryTime := day.Add(time.Duration(s.rng.Intn(24)) * time.Hour)
			exitTime := entryTime.Add(time.Duration(1+s.rng.Intn(72)) * time.Hour)

			entryPrice := decimal.NewFromFloat(0.2 + s.rng.Float64()*0.6).Round(4)
			exitPrice := s.exitPrice(side, entryPrice, ret)

			trades = append(trades, Trade{
				ID:             uuid.New().String(),
				MarketID:       fmt.Sprintf("sim-market-%03d", s.rng.Intn(1000)),
				Side:           side,
				EntryPrice:     entryPrice,
				ExitPrice:      exitPrice,
				Size:           size,
				PnL:            pnl,
				EntryTime:      entryTime,
				ExitTime:       exitTime,
				SignalStrength: SignalMedium,
			})
			capital = capital.Add(pnl)
		}

		sample := day.Add(24 * time.Hour)
		if sample.After(end) {
			// Partial final day: the curve must not extend past the window.
			sample = end
		}
		curve = append(curve, EquityPoint{Time: sample, Equity: capital})
	}

	s.log.Info("stochastic simulation finished",
		"trades", len(trades),
		"final_capital", capital.String())

	return &Result{
		Trades:       trades,
		EquityCurve:  curve,
		FinalCapital: capital,
		Source:       SourceStochastic,
	}
}

// uniform draws from [lo, hi).
func (s *StochasticSimulator) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Float64()*(hi-lo)
}

// exitPrice back-derives a synthetic exit price consistent with the drawn
// return and the position side.
func (s *StochasticSimulator) exitPrice(side Side, entryPrice decimal.Decimal, ret float64) decimal.Decimal {
	move := decimal.NewFromFloat(ret)
	if side == SideNo {
		move = move.Neg()
	}
	return entryPrice.Mul(decimal.NewFromInt(1).Add(move)).Round(4)
}
