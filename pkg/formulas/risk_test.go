package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantCorrelationVolatility(t *testing.T) {
	tests := []struct {
		name      string
		weights   []float64
		vols      []float64
		rho       float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "empty",
			expected:  0,
			tolerance: 0,
		},
		{
			name:      "single asset is its own volatility",
			weights:   []float64{1},
			vols:      []float64{0.2},
			rho:       0.3,
			expected:  0.2,
			tolerance: 1e-12,
		},
		{
			// 0.36*0.04 + 0.16*0.01 + 2*0.3*0.6*0.4*0.2*0.1 = 0.01888
			name:      "sixty forty with constant correlation",
			weights:   []float64{0.6, 0.4},
			vols:      []float64{0.2, 0.1},
			rho:       0.3,
			expected:  math.Sqrt(0.01888),
			tolerance: 1e-12,
		},
		{
			name:      "perfect correlation is the weighted sum",
			weights:   []float64{0.5, 0.5},
			vols:      []float64{0.2, 0.1},
			rho:       1,
			expected:  0.15,
			tolerance: 1e-12,
		},
		{
			name:      "mismatched lengths",
			weights:   []float64{0.5, 0.5},
			vols:      []float64{0.2},
			rho:       0.3,
			expected:  0,
			tolerance: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConstantCorrelationVolatility(tt.weights, tt.vols, tt.rho)
			assert.InDelta(t, tt.expected, result, tt.tolerance)
		})
	}
}

func TestParametricVaRAndDrawdown(t *testing.T) {
	assert.InDelta(t, 1.645*0.2*1000, ParametricVaR(0.2, 1000, Z95), 1e-9)
	assert.InDelta(t, 0.5, MaxDrawdownEstimate(0.2), 1e-12)
}

func TestEstimateFromPrices(t *testing.T) {
	t.Run("too few prices", func(t *testing.T) {
		_, _, ok := EstimateFromPrices([]float64{100, 101}, TradingDaysPerYear)
		assert.False(t, ok)
	})

	t.Run("constant growth has no volatility", func(t *testing.T) {
		closes := []float64{100}
		for i := 0; i < 20; i++ {
			closes = append(closes, closes[len(closes)-1]*1.001)
		}

		er, vol, ok := EstimateFromPrices(closes, TradingDaysPerYear)
		assert.True(t, ok)
		assert.InDelta(t, 0.001*TradingDaysPerYear, er, 1e-9)
		assert.InDelta(t, 0, vol, 1e-9)
	})

	t.Run("alternating moves are volatile", func(t *testing.T) {
		closes := []float64{100, 102, 100, 102, 100, 102, 100}

		_, vol, ok := EstimateFromPrices(closes, TradingDaysPerYear)
		assert.True(t, ok)
		assert.Greater(t, vol, 0.1)
		assert.False(t, math.IsNaN(vol))
	})
}
