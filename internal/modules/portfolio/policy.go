// Package portfolio provides the asset allocation policy driving the search:
// the legal buy, sell and scenario actions of a state, the transition that keeps
// risk metrics current, and a Sharpe-like reward with constraint penalties.
package portfolio

import (
	"maps"
	"math"
	"slices"

	"github.com/rs/zerolog"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/mcts"
	"github.com/plturrell/scb-sapphire-finsight-sub010/pkg/formulas"
)

// asset is the resolved market view of one asset.
type asset struct {
	expectedReturn  float64
	volatility      float64
	recessionFactor float64
}

// Policy is the portfolio action generator, transition and reward function.
// It is immutable after construction and safe for concurrent use.
type Policy struct {
	params       PolicyParams
	riskFreeRate float64
	assets       map[string]asset
	assetIDs     []string
	scenarios    []mcts.MarketChange
	log          zerolog.Logger
}

// NewPolicy validates market and params and resolves per-asset estimates.
// Assets carrying a usable price series have their expected return and
// volatility estimated from it.
func NewPolicy(market MarketData, params PolicyParams, log zerolog.Logger) (*Policy, error) {
	errs := append(market.Validate(), params.Validate()...)
	if len(errs) > 0 {
		return nil, errs
	}

	p := &Policy{
		params:       params,
		riskFreeRate: market.RiskFreeRate,
		assets:       make(map[string]asset, len(market.Assets)),
		assetIDs:     slices.Sorted(maps.Keys(market.Assets)),
		log:          log.With().Str("component", "portfolio_policy").Logger(),
	}

	for _, id := range p.assetIDs {
		data := market.Assets[id]
		a := asset{
			expectedReturn:  data.ExpectedReturn,
			volatility:      data.Volatility,
			recessionFactor: params.DefaultRecessionFactor,
		}
		if data.RecessionFactor != nil {
			a.recessionFactor = *data.RecessionFactor
		}
		if len(data.Prices) > 0 {
			if er, vol, ok := formulas.EstimateFromPrices(data.Prices, formulas.TradingDaysPerYear); ok {
				p.log.Debug().
					Str("asset", id).
					Float64("expected_return", er).
					Float64("volatility", vol).
					Msg("Estimated asset statistics from prices")
				a.expectedReturn, a.volatility = er, vol
			} else {
				p.log.Warn().Str("asset", id).Int("prices", len(data.Prices)).Msg("Too few prices to estimate, using supplied statistics")
			}
		}
		p.assets[id] = a
	}

	for _, s := range market.Scenarios {
		p.scenarios = append(p.scenarios, mcts.MarketChange{Changes: maps.Clone(s.Changes)})
	}

	return p, nil
}

// Params returns the policy constants.
func (p *Policy) Params() PolicyParams { return p.params }

// Problem binds the policy to the search engine.
func (p *Policy) Problem() mcts.Problem {
	return mcts.Problem{
		Actions: p.Actions,
		Reward:  p.Reward,
		Apply:   p.Apply,
	}
}

// Actions lists, per asset in id order, a buy at every allocation step and,
// when the asset is held, a sell at every step plus a sell-all. One market
// change per configured scenario follows.
func (p *Policy) Actions(state mcts.FinancialState) []mcts.Action {
	steps := p.params.AllocationSteps
	actions := make([]mcts.Action, 0, len(p.assetIDs)*(2*len(steps)+1)+len(p.scenarios))

	for _, id := range p.assetIDs {
		for _, step := range steps {
			actions = append(actions, mcts.BuyAsset{Asset: id, Fraction: step})
		}
		if state.Holding(id) > 0 {
			for _, step := range steps {
				actions = append(actions, mcts.SellAsset{Asset: id, Fraction: step})
			}
			actions = append(actions, mcts.SellAsset{Asset: id, Fraction: 1})
		}
	}
	for _, s := range p.scenarios {
		actions = append(actions, s)
	}

	return actions
}

// Apply applies action and recomputes the risk metrics of the result. Buys and
// sells of assets missing from the market data leave the state unchanged.
func (p *Policy) Apply(state mcts.FinancialState, action mcts.Action) mcts.FinancialState {
	if id, ok := mcts.AssetOf(action); ok {
		if _, known := p.assets[id]; !known {
			p.log.Warn().Str("asset", id).Str("action", action.String()).Msg("Ignoring action on unknown asset")
			return state.Clone()
		}
	}

	next := mcts.ApplyAction(state, action)
	next.Risks = p.Risks(next)
	return next
}

// Risks computes the risk metrics of state: volatility under a constant
// pairwise correlation, parametric 95% VaR and an approximate max drawdown.
func (p *Policy) Risks(state mcts.FinancialState) map[string]float64 {
	weights, vols, total := p.weightsAndVols(state)
	vol := formulas.ConstantCorrelationVolatility(weights, vols, p.params.Correlation)

	return map[string]float64{
		mcts.RiskVolatility:  vol,
		mcts.RiskVaR95:       formulas.ParametricVaR(vol, total, formulas.Z95),
		mcts.RiskMaxDrawdown: formulas.MaxDrawdownEstimate(vol),
	}
}

func (p *Policy) weightsAndVols(state mcts.FinancialState) (weights, vols []float64, total float64) {
	total = state.TotalValue()
	if total <= 0 {
		return nil, nil, 0
	}
	for _, id := range state.AssetIDs() {
		weights = append(weights, state.Assets[id]/total)
		vols = append(vols, p.assets[id].volatility)
	}
	return weights, vols, total
}

// Evaluation breaks a reward down into its components.
type Evaluation struct {
	Empty            bool    `json:"empty" msgpack:"empty" yaml:"empty"`
	ExpectedReturn   float64 `json:"expected_return" msgpack:"expected_return" yaml:"expected_return"`
	Risk             float64 `json:"risk" msgpack:"risk" yaml:"risk"`
	Diversification  float64 `json:"diversification" msgpack:"diversification" yaml:"diversification"`
	Sharpe           float64 `json:"sharpe" msgpack:"sharpe" yaml:"sharpe"`
	ReturnPenalty    float64 `json:"return_penalty" msgpack:"return_penalty" yaml:"return_penalty"`
	RiskPenalty      float64 `json:"risk_penalty" msgpack:"risk_penalty" yaml:"risk_penalty"`
	DiversityPenalty float64 `json:"diversification_penalty" msgpack:"diversification_penalty" yaml:"diversification_penalty"`
	Reward           float64 `json:"reward" msgpack:"reward" yaml:"reward"`
}

// Evaluate scores state.
//
// Expected return and risk are weighted sums over held assets. During a
// recession every asset's return is scaled by its recession factor. Assets
// missing from the market data contribute neither return nor risk. The Sharpe
// term is 0 when risk is 0. An empty portfolio scores EmptyPortfolioReward.
func (p *Policy) Evaluate(state mcts.FinancialState) Evaluation {
	weights, vols, total := p.weightsAndVols(state)
	if total <= 0 {
		return Evaluation{Empty: true, Reward: p.params.EmptyPortfolioReward}
	}

	recession := state.InRecession()
	returns := make([]float64, 0, len(weights))
	for _, id := range state.AssetIDs() {
		a := p.assets[id]
		r := a.expectedReturn
		if recession {
			r *= a.recessionFactor
		}
		returns = append(returns, r)
	}

	e := Evaluation{
		ExpectedReturn:  formulas.WeightedSum(weights, returns),
		Risk:            formulas.WeightedSum(weights, vols),
		Diversification: formulas.Diversification(weights),
	}
	if e.Risk > 0 {
		e.Sharpe = (e.ExpectedReturn - p.riskFreeRate) / e.Risk
	}

	targets := state.TargetMetrics
	e.ReturnPenalty = p.params.ReturnPenaltyWeight * math.Max(0, targets[mcts.TargetReturn]-e.ExpectedReturn)
	e.RiskPenalty = p.params.RiskPenaltyWeight * math.Max(0, e.Risk-p.params.RiskTolerance)
	e.DiversityPenalty = p.params.DiversificationPenaltyWeight * math.Max(0, targets[mcts.TargetDiversification]-e.Diversification)

	e.Reward = e.Sharpe - e.ReturnPenalty - e.RiskPenalty - e.DiversityPenalty
	return e
}

// Reward returns Evaluate(state).Reward.
func (p *Policy) Reward(state mcts.FinancialState) float64 {
	return p.Evaluate(state).Reward
}
