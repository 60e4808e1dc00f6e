package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultStrategyParams().Validate())

	cases := []struct {
		name   string
		mutate func(*StrategyParams)
	}{
		{"zero min_edge", func(p *StrategyParams) { p.MinEdge = 0 }},
		{"negative min_edge", func(p *StrategyParams) { p.MinEdge = -0.01 }},
		{"zero position_pct", func(p *StrategyParams) { p.PositionPct = 0 }},
		{"position_pct above one", func(p *StrategyParams) { p.PositionPct = 1.5 }},
		{"zero take_profit", func(p *StrategyParams) { p.TakeProfit = 0 }},
		{"zero stop_loss", func(p *StrategyParams) { p.StopLoss = 0 }},
		{"win_probability above one", func(p *StrategyParams) { p.WinProbability = 1.2 }},
		{"negative win_probability", func(p *StrategyParams) { p.WinProbability = -0.1 }},
		{"zero avg_return", func(p *StrategyParams) { p.AvgReturn = 0 }},
		{"negative trade_frequency", func(p *StrategyParams) { p.TradeFrequency = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultStrategyParams()
			tc.mutate(&params)
			assert.Error(t, params.Validate())
		})
	}

	// Boundary values that must pass.
	edge := DefaultStrategyParams()
	edge.PositionPct = 1
	edge.WinProbability = 0
	edge.TradeFrequency = 0
	assert.NoError(t, edge.Validate())
}
