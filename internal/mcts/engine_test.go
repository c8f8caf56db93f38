package mcts

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/progress"
)

func seededConfig(iterations int, seed int64) Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = iterations
	cfg.Seed = &seed
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return e
}

// assertTreeInvariants checks that visits are consistent everywhere.
func assertTreeInvariants(t *testing.T, tree *Tree) {
	t.Helper()
	for i := 0; i < tree.Len(); i++ {
		n := tree.Node(i)
		assert.LessOrEqual(t, tree.ChildVisitSum(i), n.Visits, "node %d", i)
		if !n.IsRoot() {
			assert.Less(t, n.Parent, i, "parents precede children")
			assert.Equal(t, tree.Node(n.Parent).Depth+1, n.Depth)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		field   string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero iterations", mutate: func(c *Config) { c.MaxIterations = 0 }, wantErr: true, field: "max_iterations"},
		{name: "negative iterations", mutate: func(c *Config) { c.MaxIterations = -5 }, wantErr: true, field: "max_iterations"},
		{name: "zero exploration", mutate: func(c *Config) { c.ExplorationConstant = 0 }, wantErr: true, field: "exploration_constant"},
		{name: "NaN exploration", mutate: func(c *Config) { c.ExplorationConstant = math.NaN() }, wantErr: true, field: "exploration_constant"},
		{name: "zero rollout depth", mutate: func(c *Config) { c.MaxRolloutDepth = 0 }, wantErr: true, field: "max_rollout_depth"},
		{name: "negative time budget", mutate: func(c *Config) { c.TimeBudget = -time.Second }, wantErr: true, field: "time_budget"},
		{name: "negative progress interval", mutate: func(c *Config) { c.ProgressInterval = -1 }, wantErr: true, field: "progress_interval"},
		{name: "progress disabled", mutate: func(c *Config) { c.ProgressInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			require.Len(t, cfgErr.Errors, 1)
			assert.Equal(t, tt.field, cfgErr.Errors[0].Field)
		})
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 0
	cfg.MaxRolloutDepth = 0

	e, err := NewEngine(cfg, zerolog.Nop())

	assert.Nil(t, e)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "max_iterations: must be greater than 0")
	assert.Contains(t, err.Error(), "max_rollout_depth")

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 2)
}

func TestEngine_RunRejectsIncompleteProblem(t *testing.T) {
	e := newTestEngine(t, seededConfig(10, 1))

	result, err := e.Run(context.Background(), FinancialState{}, Problem{})

	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "actions")
	assert.Contains(t, err.Error(), "reward")
}

func TestEngine_Search(t *testing.T) {
	cfg := seededConfig(500, 7)
	cfg.MaxRolloutDepth = 2
	e := newTestEngine(t, cfg)
	initial := FinancialState{}

	tree, result, err := e.Search(context.Background(), initial, firstPickProblem())
	require.NoError(t, err)

	assert.Equal(t, uint64(500), tree.Root().Visits)
	assert.Equal(t, uint64(500), result.Iterations)
	assert.False(t, result.Truncated)
	assertTreeInvariants(t, tree)
	assert.Equal(t, 4, tree.Len(), "root plus one terminal child per action")

	assert.LessOrEqual(t, result.ConfidenceInterval.Lower, result.ExpectedReturn)
	assert.GreaterOrEqual(t, result.ConfidenceInterval.Upper, result.ExpectedReturn)

	require.Equal(t, []string{"buy:A:0.5"}, result.OptimalActions)
	require.Len(t, result.OptimalPath, 2)
	assert.True(t, result.OptimalPath[0].Equal(initial))
	assert.Equal(t, 0.5, result.OptimalPath[1].Holding("A"))

	for _, ci := range tree.Root().Children {
		child := tree.Node(ci)
		want := 0.0
		if child.Action.String() == "buy:A:0.5" {
			want = 1
		}
		assert.Equal(t, want, child.Exploitation(), child.Action.String())
	}
}

func TestEngine_SearchLeavesInitialStateUntouched(t *testing.T) {
	cfg := seededConfig(500, 7)
	cfg.MaxRolloutDepth = 2
	initial := FinancialState{Assets: map[string]float64{"A": 0.5, "B": 0.5}}

	tree, result, err := newTestEngine(t, cfg).Search(context.Background(), initial, counterProblem())
	require.NoError(t, err)

	assertTreeInvariants(t, tree)
	require.NotEmpty(t, result.OptimalActions)
	assert.Len(t, result.OptimalPath, len(result.OptimalActions)+1)
	assert.True(t, result.OptimalPath[0].Equal(initial))
	assert.Equal(t, map[string]float64{"A": 0.5, "B": 0.5}, initial.Assets)
}

func TestEngine_RunDeterministic(t *testing.T) {
	initial := FinancialState{Assets: map[string]float64{"A": 1}}

	first, err := newTestEngine(t, seededConfig(300, 42)).Run(context.Background(), initial, counterProblem())
	require.NoError(t, err)
	second, err := newTestEngine(t, seededConfig(300, 42)).Run(context.Background(), initial, counterProblem())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_WithRandSource(t *testing.T) {
	initial := FinancialState{Assets: map[string]float64{"A": 1}}
	cfg := DefaultConfig()
	cfg.MaxIterations = 200

	first, err := newTestEngine(t, cfg, WithRandSource(NewRandSource(3))).Run(context.Background(), initial, counterProblem())
	require.NoError(t, err)
	second, err := newTestEngine(t, seededConfig(200, 3)).Run(context.Background(), initial, counterProblem())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_RunSingleIteration(t *testing.T) {
	e := newTestEngine(t, seededConfig(1, 1))

	tree, result, err := e.Search(context.Background(), FinancialState{}, counterProblem())
	require.NoError(t, err)

	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, uint64(1), result.Iterations)
	assert.Equal(t, 0.0, result.RiskAssessment)
	assert.Equal(t, result.ConfidenceInterval.Lower, result.ConfidenceInterval.Upper)
	assert.Equal(t, result.ExpectedReturn, result.ConfidenceInterval.Lower)
}

func TestEngine_RunTerminalRoot(t *testing.T) {
	e := newTestEngine(t, seededConfig(20, 1))
	p := Problem{
		Actions: func(FinancialState) []Action { return nil },
		Reward:  func(FinancialState) float64 { return 0.25 },
	}

	tree, result, err := e.Search(context.Background(), FinancialState{}, p)
	require.NoError(t, err)

	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, uint64(20), tree.Root().Visits)
	assert.Equal(t, 0.25, result.ExpectedReturn)
	assert.Equal(t, 0.0, result.RiskAssessment)
	assert.Len(t, result.OptimalPath, 1)
	assert.Empty(t, result.OptimalActions)
}

func TestEngine_RunNonFiniteReward(t *testing.T) {
	e := newTestEngine(t, seededConfig(50, 1))
	p := counterProblem()
	p.Reward = func(FinancialState) float64 { return math.NaN() }

	tree, result, err := e.Search(context.Background(), FinancialState{}, p)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.ExpectedReturn)
	assert.Equal(t, 0.0, tree.Root().CumulativeReward)
	assert.False(t, math.IsNaN(result.ConfidenceInterval.Upper))
}

func TestEngine_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestEngine(t, seededConfig(100, 1)).Run(ctx, FinancialState{}, counterProblem())
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, uint64(0), result.Iterations)
	assert.Equal(t, 0.0, result.ExpectedReturn)
	assert.Equal(t, ConfidenceInterval{}, result.ConfidenceInterval)
	assert.Len(t, result.OptimalPath, 1)
}

func TestEngine_RunCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := seededConfig(1000, 1)
	cfg.ProgressInterval = 100
	e := newTestEngine(t, cfg, WithProgress(func(current, total int, message string) {
		if current == 300 {
			cancel()
		}
	}))

	tree, result, err := e.Search(ctx, FinancialState{}, counterProblem())
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, uint64(300), result.Iterations)
	assert.Equal(t, uint64(300), tree.Root().Visits)
}

func TestEngine_RunTimeBudget(t *testing.T) {
	cfg := seededConfig(1000, 1)
	cfg.TimeBudget = time.Millisecond
	p := counterProblem()
	reward := p.Reward
	p.Reward = func(s FinancialState) float64 {
		time.Sleep(200 * time.Microsecond)
		return reward(s)
	}

	result, err := newTestEngine(t, cfg).Run(context.Background(), FinancialState{}, p)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Less(t, result.Iterations, uint64(1000))
}

func TestEngine_Progress(t *testing.T) {
	cfg := seededConfig(250, 1)
	cfg.ProgressInterval = 100

	var calls []int
	var updates []progress.Update
	e := newTestEngine(t, cfg,
		WithProgress(func(current, total int, message string) {
			assert.Equal(t, 250, total)
			calls = append(calls, current)
		}),
		WithDetailedProgress(func(u progress.Update) { updates = append(updates, u) }),
	)

	_, err := e.Run(context.Background(), FinancialState{}, counterProblem())
	require.NoError(t, err)

	assert.Equal(t, []int{100, 200, 250}, calls)
	require.Len(t, updates, 3)
	assert.Equal(t, "search", updates[0].Phase)
	assert.Contains(t, updates[2].Details, "tree_size")
	assert.Contains(t, updates[2].Details, "mean_reward")
}

func TestSummarize(t *testing.T) {
	rewards := make([]float64, 0, 20)
	for i := 20; i >= 1; i-- {
		rewards = append(rewards, float64(i))
	}

	result := Summarize(rewards, nil)

	assert.Equal(t, 10.5, result.ExpectedReturn)
	assert.Equal(t, 2.0, result.ConfidenceInterval.Lower)
	assert.Equal(t, 20.0, result.ConfidenceInterval.Upper)
	assert.InDelta(t, 5.9160797831/10.5, result.RiskAssessment, 1e-9)
	assert.Equal(t, uint64(20), result.Iterations)
	assert.Equal(t, 20.0, rewards[0], "input order is kept")
	assert.Empty(t, result.OptimalPath)
}

func TestSummarize_Degenerate(t *testing.T) {
	empty := Summarize(nil, nil)
	assert.Equal(t, SimulationResult{OptimalPath: []FinancialState{}, OptimalActions: []string{}}, empty)

	zeroMean := Summarize([]float64{-1, 1}, nil)
	assert.Equal(t, 0.0, zeroMean.ExpectedReturn)
	assert.Equal(t, 0.0, zeroMean.RiskAssessment)

	negative := Summarize([]float64{-1, -3}, nil)
	assert.Less(t, negative.RiskAssessment, 0.0)
}
