package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

const (
	// Z95 is the one-sided 95% quantile of the standard normal distribution.
	Z95 = 1.645

	// DrawdownVolatilityMultiple approximates max drawdown as a multiple of volatility.
	DrawdownVolatilityMultiple = 2.5

	// TradingDaysPerYear annualises daily statistics.
	TradingDaysPerYear = 252
)

// ConstantCorrelationVolatility computes portfolio volatility assuming every pair
// of assets shares the same correlation coefficient rho:
//
//	σ² = Σ wᵢ²σᵢ² + ρ Σ_{i≠j} wᵢwⱼσᵢσⱼ
//
// which reduces to (1−ρ)Σxᵢ² + ρ(Σxᵢ)² with xᵢ = wᵢσᵢ.
func ConstantCorrelationVolatility(weights, vols []float64, rho float64) float64 {
	if len(weights) == 0 || len(weights) != len(vols) {
		return 0
	}

	var sumSq, sum float64
	for i := range weights {
		x := weights[i] * vols[i]
		sumSq += x * x
		sum += x
	}

	variance := (1-rho)*sumSq + rho*sum*sum
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// ParametricVaR approximates Value-at-Risk under a normal assumption:
// z * volatility * value.
func ParametricVaR(volatility, value, z float64) float64 {
	return z * volatility * value
}

// MaxDrawdownEstimate approximates the maximum drawdown from volatility.
func MaxDrawdownEstimate(volatility float64) float64 {
	return DrawdownVolatilityMultiple * volatility
}

// EstimateFromPrices derives an annualised expected return and volatility from a
// series of closing prices. At least three prices are required; ok is false
// otherwise.
func EstimateFromPrices(closes []float64, periodsPerYear int) (expectedReturn, volatility float64, ok bool) {
	if len(closes) < 3 || periodsPerYear <= 0 {
		return 0, 0, false
	}

	// Roc emits percentages with a zero in the lookback slot.
	roc := talib.Roc(closes, 1)
	returns := make([]float64, 0, len(roc)-1)
	for _, r := range roc[1:] {
		returns = append(returns, r/100)
	}

	sd := talib.StdDev(returns, len(returns), 1)
	periodVol := sd[len(sd)-1]
	if math.IsNaN(periodVol) || periodVol < 0 {
		periodVol = 0
	}

	expectedReturn = Mean(returns) * float64(periodsPerYear)
	volatility = periodVol * math.Sqrt(float64(periodsPerYear))
	return expectedReturn, volatility, true
}
