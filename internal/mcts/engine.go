package mcts

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/progress"
)

// Engine defaults.
const (
	DefaultMaxIterations       = 10000
	DefaultExplorationConstant = 1.41
	DefaultMaxRolloutDepth     = 10
	DefaultProgressInterval    = 1000
)

// Config controls one search.
type Config struct {
	MaxIterations       int     `json:"max_iterations" msgpack:"max_iterations" yaml:"max_iterations"`
	ExplorationConstant float64 `json:"exploration_constant" msgpack:"exploration_constant" yaml:"exploration_constant"`
	MaxRolloutDepth     int     `json:"max_rollout_depth" msgpack:"max_rollout_depth" yaml:"max_rollout_depth"`

	// Seed makes runs reproducible. Nil draws a seed from system entropy.
	Seed *int64 `json:"seed,omitempty" msgpack:"seed,omitempty" yaml:"seed,omitempty"`

	// TimeBudget stops the loop early once exceeded. Zero means no limit.
	TimeBudget time.Duration `json:"time_budget,omitempty" msgpack:"time_budget,omitempty" yaml:"time_budget,omitempty"`

	// ProgressInterval is the number of iterations between progress callbacks.
	// Zero disables progress reporting.
	ProgressInterval int `json:"progress_interval,omitempty" msgpack:"progress_interval,omitempty" yaml:"progress_interval,omitempty"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       DefaultMaxIterations,
		ExplorationConstant: DefaultExplorationConstant,
		MaxRolloutDepth:     DefaultMaxRolloutDepth,
		ProgressInterval:    DefaultProgressInterval,
	}
}

// Validate checks the configuration. It returns a *ConfigError listing every
// invalid field.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.MaxIterations <= 0 {
		errs = append(errs, ValidationError{Field: "max_iterations", Message: "must be greater than 0"})
	}
	if math.IsNaN(c.ExplorationConstant) || math.IsInf(c.ExplorationConstant, 0) || c.ExplorationConstant <= 0 {
		errs = append(errs, ValidationError{Field: "exploration_constant", Message: "must be a positive finite number"})
	}
	if c.MaxRolloutDepth <= 0 {
		errs = append(errs, ValidationError{Field: "max_rollout_depth", Message: "must be greater than 0"})
	}
	if c.TimeBudget < 0 {
		errs = append(errs, ValidationError{Field: "time_budget", Message: "must not be negative"})
	}
	if c.ProgressInterval < 0 {
		errs = append(errs, ValidationError{Field: "progress_interval", Message: "must not be negative"})
	}

	return configError(errs)
}

// Engine runs Monte Carlo Tree Searches with a fixed configuration.
type Engine struct {
	cfg      Config
	source   RandSource
	progress progress.Callback
	detailed progress.DetailedCallback
	log      zerolog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithRandSource injects the random source used by Run. It takes precedence over
// Config.Seed and is shared by successive runs; RunParallel ignores it.
func WithRandSource(src RandSource) Option {
	return func(e *Engine) { e.source = src }
}

// WithProgress registers a progress callback. With RunParallel it is called from
// several goroutines.
func WithProgress(cb progress.Callback) Option {
	return func(e *Engine) { e.progress = cb }
}

// WithDetailedProgress registers a detailed progress callback. With RunParallel
// it is called from several goroutines.
func WithDetailedProgress(cb progress.DetailedCallback) Option {
	return func(e *Engine) { e.detailed = cb }
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config, log zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg: cfg,
		log: log.With().Str("component", "mcts").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run searches from initial and summarises the collected rewards.
//
// Only configuration errors are returned. Cancellation of ctx or an exhausted
// TimeBudget ends the loop early; the result then covers the iterations that
// completed and has Truncated set.
func (e *Engine) Run(ctx context.Context, initial FinancialState, p Problem) (*SimulationResult, error) {
	_, result, err := e.Search(ctx, initial, p)
	return result, err
}

// Search is Run that also returns the search tree for inspection.
func (e *Engine) Search(ctx context.Context, initial FinancialState, p Problem) (*Tree, *SimulationResult, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}

	started := time.Now()
	out := e.search(ctx, initial, p, e.randSource(), e.cfg.MaxIterations, 0)

	result := Summarize(out.rewards, out.tree)
	result.Truncated = out.truncated

	e.log.Debug().
		Uint64("iterations", result.Iterations).
		Int("tree_size", out.tree.Len()).
		Int("tree_depth", out.tree.MaxDepth()).
		Float64("expected_return", result.ExpectedReturn).
		Bool("truncated", result.Truncated).
		Dur("elapsed", time.Since(started)).
		Msg("Search completed")

	return out.tree, &result, nil
}

func (e *Engine) randSource() RandSource {
	if e.source != nil {
		return e.source
	}
	return NewRandSource(e.baseSeed())
}

func (e *Engine) baseSeed() int64 {
	if e.cfg.Seed != nil {
		return *e.cfg.Seed
	}
	return EntropySeed()
}

// searchOutcome is the raw product of one search loop.
type searchOutcome struct {
	tree      *Tree
	rewards   []float64
	truncated bool
}

// search runs the selection, expansion, rollout and backpropagation loop for at
// most iterations passes.
func (e *Engine) search(ctx context.Context, initial FinancialState, p Problem, rng RandSource, iterations, worker int) searchOutcome {
	root := initial.Clone()
	tree := NewTree(root, slices.Clone(p.Actions(root)))
	rewards := make([]float64, 0, iterations)

	var deadline time.Time
	if e.cfg.TimeBudget > 0 {
		deadline = time.Now().Add(e.cfg.TimeBudget)
	}

	rewardSum := 0.0
	for iter := 0; iter < iterations; iter++ {
		select {
		case <-ctx.Done():
			e.log.Warn().Err(ctx.Err()).Int("worker", worker).Int("completed", iter).Msg("Search cancelled")
			return searchOutcome{tree: tree, rewards: rewards, truncated: true}
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			e.log.Warn().Dur("time_budget", e.cfg.TimeBudget).Int("worker", worker).Int("completed", iter).Msg("Search time budget exhausted")
			return searchOutcome{tree: tree, rewards: rewards, truncated: true}
		}

		leaf := tree.selectLeaf(e.cfg.ExplorationConstant)
		if !tree.nodes[leaf].FullyExpanded() {
			leaf = tree.expand(leaf, p, rng)
		}

		terminal := rollout(tree.nodes[leaf].State, p, e.cfg.MaxRolloutDepth, rng)
		reward := e.score(p, terminal)
		tree.backpropagate(leaf, reward)

		rewards = append(rewards, reward)
		rewardSum += reward

		if progress.Every(iter+1, iterations, e.cfg.ProgressInterval) {
			e.report(worker, iter+1, iterations, tree.Len(), rewardSum/float64(iter+1))
		}
	}

	return searchOutcome{tree: tree, rewards: rewards}
}

// score evaluates a terminal state. Non-finite rewards are replaced by 0 so
// that NaN never reaches the tree statistics.
func (e *Engine) score(p Problem, terminal FinancialState) float64 {
	reward := p.Reward(terminal)
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		e.log.Warn().Float64("reward", reward).Msg("Non-finite reward replaced with 0")
		return 0
	}
	return reward
}

func (e *Engine) report(worker, current, total, treeSize int, meanReward float64) {
	progress.Call(e.progress, current, total, "Searching action sequences")
	progress.CallDetailed(e.detailed, progress.Update{
		Phase:   "search",
		Worker:  worker,
		Current: current,
		Total:   total,
		Message: "Searching action sequences",
		Details: map[string]any{
			"tree_size":   treeSize,
			"mean_reward": meanReward,
		},
	})
}
