package backtest

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oddsmith/foresight/internal/logger"
	"github.com/oddsmith/foresight/pkg/utils"
	"github.com/shopspring/decimal"
)

const (
	// rollingWindow is the number of trailing yes-price observations used
	// for the mean-reversion signal.
	rollingWindow = 10

	// forwardScanMax bounds how many steps ahead an open position is held
	// before a forced close.
	forwardScanMax = 50

	// minTradeCapital is the capital floor below which no new positions are
	// opened for the remainder of a market's series.
	minTradeCapital = 100
)

// maxPositionPct caps any single position at 10% of current capital
// regardless of configured sizing.
var maxPositionPct = decimal.NewFromFloat(0.10)

// WalkForwardExecutor replays the mean-reversion strategy against historical
// price series, one market at a time, threading capital through in sequence.
type WalkForwardExecutor struct {
	params StrategyParams
	log    *logger.Logger
}

// NewWalkForwardExecutor creates an executor with validated parameters.
func NewWalkForwardExecutor(params StrategyParams) *WalkForwardExecutor {
	return &WalkForwardExecutor{
		params: params,
		log:    logger.Component("walkforward"),
	}
}

// Run simulates every market series in order and returns the combined trade
// list with its equity curve. Markets are independent: a fault inside one
// market's loop skips that market's remaining work and the run continues
// with the others.
func (e *WalkForwardExecutor) Run(series []Series, initialCapital decimal.Decimal, start time.Time) *Result {
	capital := initialCapital
	var trades []Trade

	for _, s := range series {
		var marketTrades []Trade
		capital, marketTrades = e.runMarket(s, capital)
		trades = append(trades, marketTrades...)
	}

	// Exits from different markets interleave in time; the canonical trade
	// order is chronological by exit.
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExitTime.Before(trades[j].ExitTime)
	})

	return &Result{
		Trades:       trades,
		EquityCurve:  BuildEquityCurve(start, initialCapital, trades),
		FinalCapital: capital,
		Source:       SourceHistorical,
	}
}

// runMarket walks one market's series. Named returns keep whatever trades
// and capital were produced before a fault; the deferred recover turns a
// panic into a skipped market instead of a failed run. The only panicking
// decimal operation in the loop is division by the entry price, which the
// zero-price skip below rules out, so the recover has no trigger reachable
// through price data.
func (e *WalkForwardExecutor) runMarket(s Series, startCapital decimal.Decimal) (capital decimal.Decimal, trades []Trade) {
	capital = startCapital
	defer func() {
		if r := recover(); r != nil {
			e.log.Market(s.MarketID).Error("simulation fault, skipping market remainder", "panic", r)
		}
	}()

	minEdge := decimal.NewFromFloat(e.params.MinEdge)
	strongEdge := minEdge.Mul(decimal.NewFromInt(2))
	positionPct := decimal.NewFromFloat(e.params.PositionPct)
	takeProfit := decimal.NewFromFloat(e.params.TakeProfit)
	stopLoss := decimal.NewFromFloat(e.params.StopLoss).Neg()
	capitalFloor := decimal.NewFromInt(minTradeCapital)

	points := s.Points
	for i := rollingWindow; i < len(points); i++ {
		if capital.LessThan(capitalFloor) {
			break
		}

		price := points[i].YesPrice
		if price.IsZero() {
			continue
		}

		deviation := price.Sub(rollingMean(points, i))
		if deviation.Abs().LessThan(minEdge) {
			continue
		}

		// Bet that the price reverts toward the mean.
		side := SideYes
		if deviation.GreaterThan(minEdge) {
			side = SideNo
		}

		strength := SignalMedium
		if deviation.Abs().GreaterThan(strongEdge) {
			strength = SignalStrong
		}

		size := utils.MinDecimal(capital.Mul(positionPct), capital.Mul(maxPositionPct))

		exitIdx, exitReturn := e.scanExit(points, i, side, price, takeProfit, stopLoss)
		pnl := size.Mul(exitReturn)

		trades = append(trades, Trade{
			ID:             uuid.New().String(),
			MarketID:       s.MarketID,
			Side:           side,
			EntryPrice:     price,
			ExitPrice:      points[exitIdx].YesPrice,
			Size:           size,
			PnL:            pnl,
			EntryTime:      points[i].Timestamp,
			ExitTime:       points[exitIdx].Timestamp,
			SignalStrength: strength,
		})
		capital = capital.Add(pnl)

		// Resume scanning at the index immediately after the exit.
		i = exitIdx
	}

	return capital, trades
}

// scanExit walks forward from the entry index and returns the first index
// where take-profit or stop-loss triggers, or the end of the scan window.
// Take-profit is checked before stop-loss, so when both thresholds are
// crossed at the same discretely-sampled step the exit records a win.
func (e *WalkForwardExecutor) scanExit(points []PricePoint, entryIdx int, side Side, entryPrice, takeProfit, stopLoss decimal.Decimal) (int, decimal.Decimal) {
	last := entryIdx + forwardScanMax
	if last > len(points)-1 {
		last = len(points) - 1
	}

	for j := entryIdx + 1; j <= last; j++ {
		ret := holdingReturn(side, entryPrice, points[j].YesPrice)
		if ret.GreaterThanOrEqual(takeProfit) {
			return j, ret
		}
		if ret.LessThanOrEqual(stopLoss) {
			return j, ret
		}
		if j == last {
			// Scan window exhausted: force-close at the last reachable index.
			return j, ret
		}
	}

	// No forward samples exist; the position closes where it opened.
	return entryIdx, decimal.Zero
}

// holdingReturn is the unrealized fractional return of holding a position
// opened at entryPrice when the yes-price is now current. NO positions gain
// when the yes-price falls.
func holdingReturn(side Side, entryPrice, current decimal.Decimal) decimal.Decimal {
	move := current.Sub(entryPrice).Div(entryPrice)
	if side == SideNo {
		return move.Neg()
	}
	return move
}

// rollingMean averages the trailing window of yes-prices ending just before
// index i. Callers guarantee i >= rollingWindow.
func rollingMean(points []PricePoint, i int) decimal.Decimal {
	sum := decimal.Zero
	for k := i - rollingWindow; k < i; k++ {
		sum = sum.Add(points[k].YesPrice)
	}
	return sum.Div(decimal.NewFromInt(rollingWindow))
}
