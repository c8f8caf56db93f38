package mcts

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ActionKind discriminates the Action variants.
type ActionKind string

const (
	ActionBuy          ActionKind = "buy"
	ActionSell         ActionKind = "sell"
	ActionMarketChange ActionKind = "market_change"
)

// dustThreshold removes holdings left over from floating point subtraction.
const dustThreshold = 1e-12

// Action is a transition from one FinancialState to the next. The set of
// variants is closed: BuyAsset, SellAsset and MarketChange.
type Action interface {
	Kind() ActionKind
	// String is a stable key, equal for equal actions.
	String() string
	applyTo(next *FinancialState)
}

// BuyAsset adds Fraction of the current portfolio value to Asset. An empty
// portfolio uses a notional base of 1 so that it can be rebuilt.
type BuyAsset struct {
	Asset    string  `json:"asset"`
	Fraction float64 `json:"fraction"`
}

func (a BuyAsset) Kind() ActionKind { return ActionBuy }

func (a BuyAsset) String() string {
	return "buy:" + a.Asset + ":" + formatFraction(a.Fraction)
}

func (a BuyAsset) applyTo(next *FinancialState) {
	base := next.TotalValue()
	if base <= 0 {
		base = 1
	}
	amount := a.Fraction * base
	if amount <= 0 {
		return
	}
	next.Assets[a.Asset] += amount
}

// SellAsset removes Fraction of the current portfolio value from Asset, clamped
// to the amount held. A Fraction of 1 or more sells the whole holding.
type SellAsset struct {
	Asset    string  `json:"asset"`
	Fraction float64 `json:"fraction"`
}

func (a SellAsset) Kind() ActionKind { return ActionSell }

func (a SellAsset) String() string {
	if a.SellsAll() {
		return "sell:" + a.Asset + ":all"
	}
	return "sell:" + a.Asset + ":" + formatFraction(a.Fraction)
}

// SellsAll reports whether the action liquidates the whole holding.
func (a SellAsset) SellsAll() bool {
	return a.Fraction >= 1
}

func (a SellAsset) applyTo(next *FinancialState) {
	held := next.Assets[a.Asset]
	if held <= 0 || a.Fraction <= 0 {
		return
	}

	amount := held
	if !a.SellsAll() {
		amount = a.Fraction * next.TotalValue()
	}

	remaining := held - amount
	if remaining <= dustThreshold {
		delete(next.Assets, a.Asset)
		return
	}
	next.Assets[a.Asset] = remaining
}

// MarketChange overwrites market conditions with Changes.
type MarketChange struct {
	Changes map[string]float64 `json:"changes"`
}

func (a MarketChange) Kind() ActionKind { return ActionMarketChange }

func (a MarketChange) String() string {
	keys := slices.Sorted(maps.Keys(a.Changes))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatFraction(a.Changes[k]))
	}
	return "market:" + strings.Join(parts, ",")
}

func (a MarketChange) applyTo(next *FinancialState) {
	for k, v := range a.Changes {
		next.MarketConditions[k] = v
	}
}

// ApplyAction returns the state reached by applying action to state. The input
// state is never modified. A nil action returns an unchanged copy.
func ApplyAction(state FinancialState, action Action) FinancialState {
	next := state.Clone()
	if action != nil {
		action.applyTo(&next)
	}
	return next
}

// AssetOf returns the asset targeted by a buy or sell action.
func AssetOf(action Action) (string, bool) {
	switch a := action.(type) {
	case BuyAsset:
		return a.Asset, true
	case SellAsset:
		return a.Asset, true
	}
	return "", false
}

func formatFraction(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
