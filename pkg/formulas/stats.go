// Package formulas holds the numeric helpers shared by the search engine and the
// portfolio policy. Every helper returns a defined value for empty or degenerate
// input instead of NaN.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation. Fewer than two samples
// have no spread and return 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CoefficientOfVariation returns StdDev(data) / Mean(data).
// The sign follows the mean. When the mean is exactly zero the ratio is undefined
// and 0 is returned.
func CoefficientOfVariation(data []float64) float64 {
	mean := Mean(data)
	if mean == 0 {
		return 0
	}
	return StdDev(data) / mean
}

// PercentileIndex returns floor(n*p) clamped to [0, n-1].
func PercentileIndex(n int, p float64) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * p))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// PercentileSorted reads the p-th percentile from an ascending slice using the
// floor index rule (no interpolation). Empty input returns 0.
func PercentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[PercentileIndex(len(sorted), p)]
}

// WeightedSum returns Σ weights[i]*values[i].
func WeightedSum(weights, values []float64) float64 {
	if len(weights) == 0 || len(weights) != len(values) {
		return 0
	}
	return floats.Dot(weights, values)
}

// HerfindahlIndex returns Σ w² for a set of portfolio weights.
func HerfindahlIndex(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	return floats.Dot(weights, weights)
}

// Diversification returns the Herfindahl-Hirschman complement 1 − Σw², clamped to
// [0, 1]. Weights are expected to sum to one.
func Diversification(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	d := 1 - HerfindahlIndex(weights)
	return math.Max(0, math.Min(1, d))
}
