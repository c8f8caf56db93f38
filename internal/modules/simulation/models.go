// Package simulation runs portfolio searches on behalf of the HTTP API and the
// command line: it validates requests, assembles the policy and the initial
// state, and applies the configured engine defaults.
package simulation

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/mcts"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/modules/portfolio"
)

// Default target metrics applied when a request omits them.
const (
	DefaultTargetReturn          = 0.07
	DefaultTargetMaxDrawdown     = 0.2
	DefaultTargetDiversification = 0.5
)

// MaxWorkers bounds the root-parallel worker count of one request.
const MaxWorkers = 64

// TargetMetrics are the goals the reward function penalises shortfalls against.
type TargetMetrics struct {
	TargetReturn    float64 `json:"target_return" yaml:"target_return" msgpack:"target_return"`
	MaxDrawdown     float64 `json:"max_drawdown" yaml:"max_drawdown" msgpack:"max_drawdown"`
	Diversification float64 `json:"diversification" yaml:"diversification" msgpack:"diversification"`
}

// DefaultTargetMetrics returns the default targets.
func DefaultTargetMetrics() TargetMetrics {
	return TargetMetrics{
		TargetReturn:    DefaultTargetReturn,
		MaxDrawdown:     DefaultTargetMaxDrawdown,
		Diversification: DefaultTargetDiversification,
	}
}

func (t TargetMetrics) asMap() map[string]float64 {
	return map[string]float64{
		mcts.TargetReturn:          t.TargetReturn,
		mcts.TargetMaxDrawdown:     t.MaxDrawdown,
		mcts.TargetDiversification: t.Diversification,
	}
}

// EngineSettings overrides the configured engine defaults.
//
// Nil search parameters keep the default; a supplied value is used as is and
// must be positive. A zero TimeBudgetMs means no time limit and zero Workers
// keeps the configured worker count.
type EngineSettings struct {
	MaxIterations       *int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	ExplorationConstant *float64 `json:"exploration_constant,omitempty" yaml:"exploration_constant,omitempty"`
	MaxRolloutDepth     *int     `json:"max_rollout_depth,omitempty" yaml:"max_rollout_depth,omitempty"`
	Seed                *int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	TimeBudgetMs        int64    `json:"time_budget_ms,omitempty" yaml:"time_budget_ms,omitempty"`
	Workers             int      `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// Request describes one simulation.
type Request struct {
	Portfolio        map[string]float64      `json:"portfolio" yaml:"portfolio"`
	MarketData       portfolio.MarketData    `json:"market_data" yaml:"market_data"`
	RiskTolerance    *float64                `json:"risk_tolerance,omitempty" yaml:"risk_tolerance,omitempty"`
	Horizon          mcts.Timeframe          `json:"horizon,omitempty" yaml:"horizon,omitempty"`
	TargetMetrics    *TargetMetrics          `json:"target_metrics,omitempty" yaml:"target_metrics,omitempty"`
	MarketConditions map[string]float64      `json:"market_conditions,omitempty" yaml:"market_conditions,omitempty"`
	Engine           EngineSettings          `json:"engine" yaml:"engine"`
	Policy           *portfolio.PolicyParams `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// Validate checks the request against an iteration cap. Zero engine settings
// are valid; they select the configured defaults.
func (r *Request) Validate(maxIterations int) mcts.ValidationErrors {
	var errs mcts.ValidationErrors

	for _, id := range slices.Sorted(maps.Keys(r.Portfolio)) {
		amount := r.Portfolio[id]
		if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
			errs = append(errs, mcts.ValidationError{Field: "portfolio." + id, Message: "amount must be a non-negative finite number"})
		}
	}
	if r.RiskTolerance != nil && (math.IsNaN(*r.RiskTolerance) || *r.RiskTolerance < 0 || *r.RiskTolerance > 1) {
		errs = append(errs, mcts.ValidationError{Field: "risk_tolerance", Message: "must be in [0, 1]"})
	}
	if r.Horizon != "" && !r.Horizon.Valid() {
		errs = append(errs, mcts.ValidationError{Field: "horizon", Message: "must be one of short, medium, long"})
	}

	errs = append(errs, r.MarketData.Validate()...)
	if r.Policy != nil {
		errs = append(errs, r.Policy.Validate()...)
	}

	e := r.Engine
	if n := e.MaxIterations; n != nil {
		if *n <= 0 {
			errs = append(errs, mcts.ValidationError{Field: "engine.max_iterations", Message: "must be greater than 0"})
		} else if maxIterations > 0 && *n > maxIterations {
			errs = append(errs, mcts.ValidationError{Field: "engine.max_iterations", Message: fmt.Sprintf("must not exceed %d", maxIterations)})
		}
	}
	if c := e.ExplorationConstant; c != nil && (math.IsNaN(*c) || math.IsInf(*c, 0) || *c <= 0) {
		errs = append(errs, mcts.ValidationError{Field: "engine.exploration_constant", Message: "must be a positive finite number"})
	}
	if d := e.MaxRolloutDepth; d != nil && *d <= 0 {
		errs = append(errs, mcts.ValidationError{Field: "engine.max_rollout_depth", Message: "must be greater than 0"})
	}
	if e.TimeBudgetMs < 0 {
		errs = append(errs, mcts.ValidationError{Field: "engine.time_budget_ms", Message: "must not be negative"})
	}
	if e.Workers < 0 || e.Workers > MaxWorkers {
		errs = append(errs, mcts.ValidationError{Field: "engine.workers", Message: fmt.Sprintf("must be in [0, %d]", MaxWorkers)})
	}

	return errs
}

// InitialState builds the root state of the search. Risks are filled in by the
// policy.
func (r *Request) InitialState() mcts.FinancialState {
	horizon := r.Horizon
	if horizon == "" {
		horizon = mcts.TimeframeMedium
	}
	targets := DefaultTargetMetrics()
	if r.TargetMetrics != nil {
		targets = *r.TargetMetrics
	}

	return mcts.FinancialState{
		Assets:           maps.Clone(r.Portfolio),
		Timeframe:        horizon,
		MarketConditions: maps.Clone(r.MarketConditions),
		TargetMetrics:    targets.asMap(),
	}.Clone()
}

// Response is the outcome of one simulation.
type Response struct {
	RunID             string                 `json:"run_id" msgpack:"run_id" yaml:"run_id"`
	Result            *mcts.SimulationResult `json:"result" msgpack:"result" yaml:"result"`
	InitialRisks      map[string]float64     `json:"initial_risks" msgpack:"initial_risks" yaml:"initial_risks"`
	InitialEvaluation portfolio.Evaluation   `json:"initial_evaluation" msgpack:"initial_evaluation" yaml:"initial_evaluation"`
	Engine            mcts.Config            `json:"engine" msgpack:"engine" yaml:"engine"`
	Workers           int                    `json:"workers" msgpack:"workers" yaml:"workers"`
	ElapsedMs         int64                  `json:"elapsed_ms" msgpack:"elapsed_ms" yaml:"elapsed_ms"`
}

// Defaults describes the settings applied to requests that leave them unset.
type Defaults struct {
	Engine           mcts.Config            `json:"engine" msgpack:"engine" yaml:"engine"`
	Workers          int                    `json:"workers" msgpack:"workers" yaml:"workers"`
	MaxIterationsCap int                    `json:"max_iterations_cap" msgpack:"max_iterations_cap" yaml:"max_iterations_cap"`
	Policy           portfolio.PolicyParams `json:"policy" msgpack:"policy" yaml:"policy"`
	TargetMetrics    TargetMetrics          `json:"target_metrics" msgpack:"target_metrics" yaml:"target_metrics"`
}
