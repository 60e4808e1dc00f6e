package utils

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinMaxDecimal(t *testing.T) {
	a := decimal.NewFromFloat(1.5)
	b := decimal.NewFromFloat(2.5)

	assert.True(t, MinDecimal(a, b).Equal(a))
	assert.True(t, MinDecimal(b, a).Equal(a))
	assert.True(t, MaxDecimal(a, b).Equal(b))
	assert.True(t, MaxDecimal(b, a).Equal(b))
}

func TestPercentChange(t *testing.T) {
	oldValue := decimal.NewFromFloat(100)
	newValue := decimal.NewFromFloat(110)

	change := PercentChange(oldValue, newValue)
	assert.True(t, change.Equal(decimal.NewFromFloat(10)))

	// Zero base degrades to zero rather than dividing by zero
	assert.True(t, PercentChange(decimal.Zero, newValue).IsZero())
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, -1.5, Mean([]float64{-1, -2}))
}

func TestPopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, PopulationStdDev(nil))
	assert.Equal(t, 0.0, PopulationStdDev([]float64{5, 5, 5}))

	// Population std dev of {2, 4} is 1
	assert.InDelta(t, 1.0, PopulationStdDev([]float64{2, 4}), 1e-12)
}

func TestRootMeanSquare(t *testing.T) {
	assert.Equal(t, 0.0, RootMeanSquare(nil))
	assert.InDelta(t, math.Sqrt(12.5), RootMeanSquare([]float64{-3, -4}), 1e-12)
}
