// Package mcts implements a Monte Carlo Tree Search over sequences of portfolio
// actions. The engine is a pure computational library: callers supply the initial
// state, an action generator and a reward function, and receive a
// SimulationResult. Nothing in this package performs I/O beyond logging.
package mcts

import (
	"maps"
	"slices"
)

// Timeframe is the investment horizon of a state.
type Timeframe string

const (
	TimeframeShort  Timeframe = "short"
	TimeframeMedium Timeframe = "medium"
	TimeframeLong   Timeframe = "long"
)

// Valid reports whether t is one of the known horizons.
func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeShort, TimeframeMedium, TimeframeLong:
		return true
	}
	return false
}

// Well-known keys of the state maps.
const (
	RiskVolatility  = "volatility"
	RiskVaR95       = "var_95"
	RiskMaxDrawdown = "max_drawdown"

	ConditionRecession = "recession"

	TargetReturn          = "target_return"
	TargetMaxDrawdown     = "max_drawdown"
	TargetDiversification = "diversification"
)

// FinancialState is a snapshot of a portfolio and its environment.
//
// It is a value type by convention: ApplyAction and Clone always produce fresh
// maps, so a state handed to the engine is never mutated.
type FinancialState struct {
	Assets           map[string]float64 `json:"assets" msgpack:"assets" yaml:"assets"`
	Timeframe        Timeframe          `json:"timeframe" msgpack:"timeframe" yaml:"timeframe"`
	Risks            map[string]float64 `json:"risks" msgpack:"risks" yaml:"risks"`
	MarketConditions map[string]float64 `json:"market_conditions" msgpack:"market_conditions" yaml:"market_conditions"`
	TargetMetrics    map[string]float64 `json:"target_metrics" msgpack:"target_metrics" yaml:"target_metrics"`
}

// Clone returns a deep copy. All maps of the copy are non-nil.
func (s FinancialState) Clone() FinancialState {
	return FinancialState{
		Assets:           cloneMap(s.Assets),
		Timeframe:        s.Timeframe,
		Risks:            cloneMap(s.Risks),
		MarketConditions: cloneMap(s.MarketConditions),
		TargetMetrics:    cloneMap(s.TargetMetrics),
	}
}

// Equal reports structural equality. Nil and empty maps compare equal.
func (s FinancialState) Equal(other FinancialState) bool {
	return s.Timeframe == other.Timeframe &&
		maps.Equal(s.Assets, other.Assets) &&
		maps.Equal(s.Risks, other.Risks) &&
		maps.Equal(s.MarketConditions, other.MarketConditions) &&
		maps.Equal(s.TargetMetrics, other.TargetMetrics)
}

// AssetIDs returns the held asset identifiers in ascending order.
func (s FinancialState) AssetIDs() []string {
	return slices.Sorted(maps.Keys(s.Assets))
}

// TotalValue sums all allocations. Summation runs in key order so the result is
// bit-for-bit reproducible.
func (s FinancialState) TotalValue() float64 {
	total := 0.0
	for _, id := range s.AssetIDs() {
		total += s.Assets[id]
	}
	return total
}

// Holding returns the amount allocated to asset, 0 when absent.
func (s FinancialState) Holding(asset string) float64 {
	return s.Assets[asset]
}

// IsEmpty reports whether the portfolio holds nothing.
func (s FinancialState) IsEmpty() bool {
	return s.TotalValue() <= 0
}

// InRecession reports whether the market conditions flag a recession.
func (s FinancialState) InRecession() bool {
	return s.MarketConditions[ConditionRecession] > 0
}

func cloneMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
