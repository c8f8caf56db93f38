package mcts

import (
	"math"
	"slices"
)

// ucb1 scores child for selection:
//
//	mean + c * sqrt(2 * ln(parentVisits) / childVisits)
//
// An unvisited child scores +Inf so it is tried first. A parent without visits
// contributes no exploration term.
func ucb1(parentVisits uint64, child *Node, c float64) float64 {
	if child.Visits == 0 {
		return math.Inf(1)
	}
	exploitation := child.Exploitation()
	if parentVisits == 0 || c == 0 {
		return exploitation
	}
	return exploitation + c*math.Sqrt(2*math.Log(float64(parentVisits))/float64(child.Visits))
}

// selectChild returns the child of i with the highest UCB1 score. Ties go to
// the first child reaching the maximum.
func (t *Tree) selectChild(i int, c float64) int {
	parent := &t.nodes[i]
	best := -1
	bestScore := math.Inf(-1)
	for _, ci := range parent.Children {
		score := ucb1(parent.Visits, &t.nodes[ci], c)
		if best == -1 || score > bestScore {
			best = ci
			bestScore = score
		}
	}
	return best
}

// bestExploitationChild returns the child of i with the highest mean reward
// (UCB1 with c = 0, unvisited children counting as 0).
func (t *Tree) bestExploitationChild(i int) int {
	best := -1
	bestScore := math.Inf(-1)
	for _, ci := range t.nodes[i].Children {
		score := t.nodes[ci].Exploitation()
		if best == -1 || score > bestScore {
			best = ci
			bestScore = score
		}
	}
	return best
}

// selectLeaf descends from the root while the current node is fully expanded
// and has children.
func (t *Tree) selectLeaf(c float64) int {
	i := RootIndex
	for {
		n := &t.nodes[i]
		if !n.FullyExpanded() || len(n.Children) == 0 {
			return i
		}
		i = t.selectChild(i, c)
	}
}

// expand removes one untried action of node i, drawn with rng, and attaches the
// resulting state as a new child. The order of the remaining actions is kept.
func (t *Tree) expand(i int, p Problem, rng RandSource) int {
	n := &t.nodes[i]
	k := rng.IntN(len(n.Untried))
	action := n.Untried[k]
	n.Untried = slices.Delete(n.Untried, k, k+1)

	state := p.apply(n.State, action)
	untried := slices.Clone(p.Actions(state))
	return t.addChild(i, action, state, untried)
}

// rollout plays uniformly random actions from state for at most depth steps or
// until no action is legal. The tree is not touched.
func rollout(state FinancialState, p Problem, depth int, rng RandSource) FinancialState {
	current := state
	for step := 0; step < depth; step++ {
		actions := p.Actions(current)
		if len(actions) == 0 {
			break
		}
		current = p.apply(current, actions[rng.IntN(len(actions))])
	}
	return current
}

// backpropagate adds one visit and reward to every node from i up to the root.
func (t *Tree) backpropagate(i int, reward float64) {
	for i != noParent {
		n := &t.nodes[i]
		n.Visits++
		n.CumulativeReward += reward
		i = n.Parent
	}
}
