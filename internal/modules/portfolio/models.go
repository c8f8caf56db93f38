package portfolio

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/mcts"
)

// Policy defaults.
const (
	DefaultCorrelation                  = 0.3
	DefaultRiskPenaltyWeight            = 2.0
	DefaultReturnPenaltyWeight          = 1.0
	DefaultDiversificationPenaltyWeight = 1.0
	DefaultEmptyPortfolioReward         = -1.0
	DefaultRecessionFactor              = 0.7
	DefaultRiskTolerance                = 0.5
)

// DefaultAllocationSteps are the buy and sell sizes, as fractions of portfolio value.
var DefaultAllocationSteps = []float64{0.05, 0.10, 0.20}

// AssetData describes one investable asset.
type AssetData struct {
	ExpectedReturn float64 `json:"expected_return" msgpack:"expected_return" yaml:"expected_return"`
	Volatility     float64 `json:"volatility" msgpack:"volatility" yaml:"volatility"`

	// RecessionFactor scales ExpectedReturn while a recession is flagged.
	// Nil falls back to PolicyParams.DefaultRecessionFactor.
	RecessionFactor *float64 `json:"recession_factor,omitempty" msgpack:"recession_factor,omitempty" yaml:"recession_factor,omitempty"`

	// Prices is an optional daily close series. When it holds at least three
	// prices, ExpectedReturn and Volatility are estimated from it instead.
	Prices []float64 `json:"prices,omitempty" msgpack:"prices,omitempty" yaml:"prices,omitempty"`
}

// Scenario is a named market condition change offered to the search.
type Scenario struct {
	Name    string             `json:"name,omitempty" msgpack:"name,omitempty" yaml:"name,omitempty"`
	Changes map[string]float64 `json:"changes" msgpack:"changes" yaml:"changes"`
}

// MarketData is the market model shared by every state of a search.
type MarketData struct {
	Assets       map[string]AssetData `json:"assets" msgpack:"assets" yaml:"assets"`
	RiskFreeRate float64              `json:"risk_free_rate" msgpack:"risk_free_rate" yaml:"risk_free_rate"`
	Scenarios    []Scenario           `json:"scenarios,omitempty" msgpack:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// Validate checks the market data.
func (m MarketData) Validate() mcts.ValidationErrors {
	var errs mcts.ValidationErrors

	if len(m.Assets) == 0 {
		errs = append(errs, mcts.ValidationError{Field: "market_data.assets", Message: "at least one asset is required"})
	}
	for _, id := range slices.Sorted(maps.Keys(m.Assets)) {
		a := m.Assets[id]
		field := "market_data.assets." + id
		if id == "" {
			errs = append(errs, mcts.ValidationError{Field: "market_data.assets", Message: "asset id must not be empty"})
		}
		if !finite(a.ExpectedReturn) {
			errs = append(errs, mcts.ValidationError{Field: field + ".expected_return", Message: "must be finite"})
		}
		if !finite(a.Volatility) || a.Volatility < 0 {
			errs = append(errs, mcts.ValidationError{Field: field + ".volatility", Message: "must be a non-negative finite number"})
		}
		if a.RecessionFactor != nil && (!finite(*a.RecessionFactor) || *a.RecessionFactor < 0) {
			errs = append(errs, mcts.ValidationError{Field: field + ".recession_factor", Message: "must be a non-negative finite number"})
		}
		for _, p := range a.Prices {
			if !finite(p) || p <= 0 {
				errs = append(errs, mcts.ValidationError{Field: field + ".prices", Message: "prices must be positive"})
				break
			}
		}
	}
	if !finite(m.RiskFreeRate) {
		errs = append(errs, mcts.ValidationError{Field: "market_data.risk_free_rate", Message: "must be finite"})
	}
	for i, s := range m.Scenarios {
		if len(s.Changes) == 0 {
			errs = append(errs, mcts.ValidationError{
				Field:   fmt.Sprintf("market_data.scenarios[%d]", i),
				Message: "scenario must change at least one condition",
			})
		}
	}

	return errs
}

// PolicyParams holds the heuristic constants of the portfolio policy.
type PolicyParams struct {
	AllocationSteps              []float64 `json:"allocation_steps" msgpack:"allocation_steps" yaml:"allocation_steps"`
	Correlation                  float64   `json:"correlation" msgpack:"correlation" yaml:"correlation"`
	RiskPenaltyWeight            float64   `json:"risk_penalty_weight" msgpack:"risk_penalty_weight" yaml:"risk_penalty_weight"`
	ReturnPenaltyWeight          float64   `json:"return_penalty_weight" msgpack:"return_penalty_weight" yaml:"return_penalty_weight"`
	DiversificationPenaltyWeight float64   `json:"diversification_penalty_weight" msgpack:"diversification_penalty_weight" yaml:"diversification_penalty_weight"`
	EmptyPortfolioReward         float64   `json:"empty_portfolio_reward" msgpack:"empty_portfolio_reward" yaml:"empty_portfolio_reward"`
	DefaultRecessionFactor       float64   `json:"default_recession_factor" msgpack:"default_recession_factor" yaml:"default_recession_factor"`
	RiskTolerance                float64   `json:"risk_tolerance" msgpack:"risk_tolerance" yaml:"risk_tolerance"`
}

// DefaultPolicyParams returns the default policy constants.
func DefaultPolicyParams() PolicyParams {
	return PolicyParams{
		AllocationSteps:              append([]float64(nil), DefaultAllocationSteps...),
		Correlation:                  DefaultCorrelation,
		RiskPenaltyWeight:            DefaultRiskPenaltyWeight,
		ReturnPenaltyWeight:          DefaultReturnPenaltyWeight,
		DiversificationPenaltyWeight: DefaultDiversificationPenaltyWeight,
		EmptyPortfolioReward:         DefaultEmptyPortfolioReward,
		DefaultRecessionFactor:       DefaultRecessionFactor,
		RiskTolerance:                DefaultRiskTolerance,
	}
}

// Validate checks the policy constants.
func (p PolicyParams) Validate() mcts.ValidationErrors {
	var errs mcts.ValidationErrors

	if len(p.AllocationSteps) == 0 {
		errs = append(errs, mcts.ValidationError{Field: "policy.allocation_steps", Message: "at least one step is required"})
	}
	for _, s := range p.AllocationSteps {
		if !finite(s) || s <= 0 || s >= 1 {
			errs = append(errs, mcts.ValidationError{Field: "policy.allocation_steps", Message: "steps must be in (0, 1)"})
			break
		}
	}
	if !finite(p.Correlation) || p.Correlation < -1 || p.Correlation > 1 {
		errs = append(errs, mcts.ValidationError{Field: "policy.correlation", Message: "must be in [-1, 1]"})
	}
	weights := []struct {
		field string
		value float64
	}{
		{"policy.risk_penalty_weight", p.RiskPenaltyWeight},
		{"policy.return_penalty_weight", p.ReturnPenaltyWeight},
		{"policy.diversification_penalty_weight", p.DiversificationPenaltyWeight},
		{"policy.default_recession_factor", p.DefaultRecessionFactor},
	}
	for _, w := range weights {
		if !finite(w.value) || w.value < 0 {
			errs = append(errs, mcts.ValidationError{Field: w.field, Message: "must be a non-negative finite number"})
		}
	}
	if !finite(p.EmptyPortfolioReward) || p.EmptyPortfolioReward > -1 {
		errs = append(errs, mcts.ValidationError{Field: "policy.empty_portfolio_reward", Message: "must be at most -1"})
	}
	if !finite(p.RiskTolerance) || p.RiskTolerance < 0 || p.RiskTolerance > 1 {
		errs = append(errs, mcts.ValidationError{Field: "policy.risk_tolerance", Message: "must be in [0, 1]"})
	}

	return errs
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
