package mcts

// RootIndex is the arena index of the root node.
const RootIndex = 0

// noParent marks the root's parent link.
const noParent = -1

// Node is one search tree vertex. Links to the parent and children are arena
// indices; the parent link is only used to walk upward during backpropagation.
type Node struct {
	State            FinancialState
	Action           Action // action that produced State; nil at the root
	Parent           int
	Children         []int
	Visits           uint64
	CumulativeReward float64
	Untried          []Action
	Depth            int
}

// IsRoot reports whether n is the root.
func (n *Node) IsRoot() bool { return n.Parent == noParent }

// Exploitation is the mean reward of n, or 0 for an unvisited node.
func (n *Node) Exploitation() float64 {
	if n.Visits == 0 {
		return 0
	}
	return n.CumulativeReward / float64(n.Visits)
}

// FullyExpanded reports whether every legal action already has a child.
func (n *Node) FullyExpanded() bool { return len(n.Untried) == 0 }

// IsTerminal reports whether n has neither children nor untried actions.
func (n *Node) IsTerminal() bool { return len(n.Children) == 0 && len(n.Untried) == 0 }

// Tree is an arena of nodes built during one search. Nodes are only ever
// appended as children of existing nodes, so the structure is acyclic.
type Tree struct {
	nodes []Node
}

// NewTree creates a tree whose root holds state and the given untried actions.
func NewTree(state FinancialState, untried []Action) *Tree {
	return &Tree{
		nodes: []Node{{
			State:   state,
			Parent:  noParent,
			Untried: untried,
		}},
	}
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at index i. The pointer is invalidated by the next
// expansion; hold indices, not pointers, across mutations.
func (t *Tree) Node(i int) *Node { return &t.nodes[i] }

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.nodes[RootIndex] }

// ChildVisitSum returns the visit total of the direct children of node i.
func (t *Tree) ChildVisitSum(i int) uint64 {
	var sum uint64
	for _, c := range t.nodes[i].Children {
		sum += t.nodes[c].Visits
	}
	return sum
}

// MaxDepth returns the depth of the deepest node.
func (t *Tree) MaxDepth() int {
	depth := 0
	for i := range t.nodes {
		depth = max(depth, t.nodes[i].Depth)
	}
	return depth
}

func (t *Tree) addChild(parent int, action Action, state FinancialState, untried []Action) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		State:   state,
		Action:  action,
		Parent:  parent,
		Untried: untried,
		Depth:   t.nodes[parent].Depth + 1,
	})
	t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	return idx
}

// OptimalPath follows the highest mean-reward child from the root until a node
// without children is reached. It returns the visited states (root first) and
// the keys of the actions taken between them.
func (t *Tree) OptimalPath() ([]FinancialState, []string) {
	states := []FinancialState{t.nodes[RootIndex].State.Clone()}
	actions := []string{}
	return t.descend(RootIndex, states, actions)
}

func (t *Tree) descend(from int, states []FinancialState, actions []string) ([]FinancialState, []string) {
	i := from
	for len(t.nodes[i].Children) > 0 {
		i = t.bestExploitationChild(i)
		n := &t.nodes[i]
		states = append(states, n.State.Clone())
		actions = append(actions, n.Action.String())
	}
	return states, actions
}
