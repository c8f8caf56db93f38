package mcts

import (
	"slices"

	"github.com/plturrell/scb-sapphire-finsight-sub010/pkg/formulas"
)

// Percentiles bounding the reported confidence interval.
const (
	LowerPercentile = 0.05
	UpperPercentile = 0.95
)

// ConfidenceInterval is an empirical percentile band over rollout rewards.
type ConfidenceInterval struct {
	Lower float64 `json:"lower" msgpack:"lower" yaml:"lower"`
	Upper float64 `json:"upper" msgpack:"upper" yaml:"upper"`
}

// SimulationResult summarises one search.
type SimulationResult struct {
	// ExpectedReturn is the mean rollout reward, 0 when no iteration completed.
	ExpectedReturn float64 `json:"expected_return" msgpack:"expected_return" yaml:"expected_return"`

	// RiskAssessment is the coefficient of variation of the rewards (sample
	// standard deviation over the mean). It is 0 when the mean is 0 or fewer
	// than two rewards were collected, and negative when the mean is negative.
	RiskAssessment float64 `json:"risk_assessment" msgpack:"risk_assessment" yaml:"risk_assessment"`

	ConfidenceInterval ConfidenceInterval `json:"confidence_interval" msgpack:"confidence_interval" yaml:"confidence_interval"`

	// OptimalPath starts with the root state. OptimalActions[i] leads from
	// OptimalPath[i] to OptimalPath[i+1].
	OptimalPath    []FinancialState `json:"optimal_path" msgpack:"optimal_path" yaml:"optimal_path"`
	OptimalActions []string         `json:"optimal_actions" msgpack:"optimal_actions" yaml:"optimal_actions"`

	Iterations uint64 `json:"iterations" msgpack:"iterations" yaml:"iterations"`
	Truncated  bool   `json:"truncated" msgpack:"truncated" yaml:"truncated"`
}

// Summarize aggregates rewards and extracts the optimal path from tree. tree may
// be nil, in which case the path is empty.
func Summarize(rewards []float64, tree *Tree) SimulationResult {
	result := SimulationResult{
		ExpectedReturn:     formulas.Mean(rewards),
		RiskAssessment:     formulas.CoefficientOfVariation(rewards),
		ConfidenceInterval: confidenceInterval(rewards),
		OptimalPath:        []FinancialState{},
		OptimalActions:     []string{},
		Iterations:         uint64(len(rewards)),
	}
	if tree != nil {
		result.OptimalPath, result.OptimalActions = tree.OptimalPath()
	}
	return result
}

func confidenceInterval(rewards []float64) ConfidenceInterval {
	if len(rewards) == 0 {
		return ConfidenceInterval{}
	}
	sorted := slices.Clone(rewards)
	slices.Sort(sorted)
	return ConfidenceInterval{
		Lower: formulas.PercentileSorted(sorted, LowerPercentile),
		Upper: formulas.PercentileSorted(sorted, UpperPercentile),
	}
}
