package mcts

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunParallel searches with independent trees on workers goroutines and merges
// their statistics. MaxIterations is split evenly across workers and each
// worker draws from its own source seeded from Config.Seed and its index, so a
// seeded run is reproducible for a fixed worker count.
//
// Rewards are concatenated in worker order before summarising. Root children are
// merged by action key to choose the first action; the rest of the optimal path
// comes from the worker that visited that action most.
func (e *Engine) RunParallel(ctx context.Context, initial FinancialState, p Problem, workers int) (*SimulationResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, configError(ValidationErrors{{Field: "workers", Message: "must be at least 1"}})
	}
	workers = min(workers, e.cfg.MaxIterations)

	started := time.Now()
	base := e.baseSeed()
	outcomes := make([]searchOutcome, workers)

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		iterations := e.cfg.MaxIterations / workers
		if w < e.cfg.MaxIterations%workers {
			iterations++
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("search worker %d panicked: %v", w, r)
				}
			}()
			outcomes[w] = e.search(ctx, initial, p, NewRandSource(workerSeed(base, w)), iterations, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := mergeOutcomes(outcomes)

	e.log.Debug().
		Int("workers", workers).
		Uint64("iterations", result.Iterations).
		Float64("expected_return", result.ExpectedReturn).
		Bool("truncated", result.Truncated).
		Dur("elapsed", time.Since(started)).
		Msg("Parallel search completed")

	return &result, nil
}

// rootStats accumulates the statistics of one root action across workers.
type rootStats struct {
	visits uint64
	reward float64
}

func (s rootStats) mean() float64 {
	if s.visits == 0 {
		return 0
	}
	return s.reward / float64(s.visits)
}

func mergeOutcomes(outcomes []searchOutcome) SimulationResult {
	var rewards []float64
	truncated := false
	for _, out := range outcomes {
		rewards = append(rewards, out.rewards...)
		truncated = truncated || out.truncated
	}

	result := Summarize(rewards, nil)
	result.Truncated = truncated
	result.OptimalPath = []FinancialState{outcomes[0].tree.Root().State.Clone()}

	// Keys keep first-seen order (worker order, then child order) so ties
	// resolve deterministically.
	var keys []string
	merged := make(map[string]rootStats)
	for _, out := range outcomes {
		for _, ci := range out.tree.Root().Children {
			child := out.tree.Node(ci)
			key := child.Action.String()
			s, seen := merged[key]
			if !seen {
				keys = append(keys, key)
			}
			s.visits += child.Visits
			s.reward += child.CumulativeReward
			merged[key] = s
		}
	}
	if len(keys) == 0 {
		return result
	}

	bestKey := keys[0]
	for _, key := range keys[1:] {
		if merged[key].mean() > merged[bestKey].mean() {
			bestKey = key
		}
	}

	owner, ownerChild := -1, -1
	var ownerVisits uint64
	for w, out := range outcomes {
		for _, ci := range out.tree.Root().Children {
			child := out.tree.Node(ci)
			if child.Action.String() != bestKey {
				continue
			}
			if owner == -1 || child.Visits > ownerVisits {
				owner, ownerChild, ownerVisits = w, ci, child.Visits
			}
		}
	}

	tree := outcomes[owner].tree
	first := tree.Node(ownerChild)
	states := append(result.OptimalPath, first.State.Clone())
	actions := []string{bestKey}
	result.OptimalPath, result.OptimalActions = tree.descend(ownerChild, states, actions)
	return result
}
