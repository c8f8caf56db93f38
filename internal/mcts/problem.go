package mcts

// ActionGenerator lists the actions legal from a state. It must be pure and
// return actions in a deterministic order.
type ActionGenerator func(state FinancialState) []Action

// RewardFunc scores a state. Higher is better.
type RewardFunc func(state FinancialState) float64

// Transition applies an action to a state without mutating it.
type Transition func(state FinancialState, action Action) FinancialState

// Problem bundles the domain callbacks driving a search. Apply is optional and
// defaults to ApplyAction.
type Problem struct {
	Actions ActionGenerator
	Reward  RewardFunc
	Apply   Transition
}

func (p Problem) apply(state FinancialState, action Action) FinancialState {
	if p.Apply != nil {
		return p.Apply(state, action)
	}
	return ApplyAction(state, action)
}

func (p Problem) validate() error {
	var errs ValidationErrors
	if p.Actions == nil {
		errs = append(errs, ValidationError{Field: "actions", Message: "action generator is required"})
	}
	if p.Reward == nil {
		errs = append(errs, ValidationError{Field: "reward", Message: "reward function is required"})
	}
	return configError(errs)
}
