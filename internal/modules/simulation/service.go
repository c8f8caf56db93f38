package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/events"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/mcts"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/modules/portfolio"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/progress"
)

// Run outcomes reported to a RunObserver.
const (
	StatusCompleted = "completed"
	StatusTruncated = "truncated"
	StatusInvalid   = "invalid"
	StatusFailed    = "failed"
)

// RunObserver receives one notification per finished run.
type RunObserver interface {
	ObserveRun(status string, iterations uint64, workers int, elapsed time.Duration)
}

// Publisher receives run lifecycle events.
type Publisher interface {
	Publish(event events.Event)
}

// Settings are the service-wide engine defaults.
type Settings struct {
	Engine           mcts.Config
	Workers          int
	MaxIterationsCap int
}

// Service runs simulations.
type Service struct {
	settings  Settings
	observer  RunObserver
	publisher Publisher
	log       zerolog.Logger
}

// NewService creates a simulation service. observer may be nil.
func NewService(settings Settings, observer RunObserver, log zerolog.Logger) *Service {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &Service{
		settings: settings,
		observer: observer,
		log:      log.With().Str("service", "simulation").Logger(),
	}
}

// SetPublisher sets the receiver of run events. A nil publisher disables them.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

func (s *Service) publish(runID string, data events.EventData) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.New(runID, data))
}

// Defaults returns the settings applied to fields a request leaves unset.
func (s *Service) Defaults() Defaults {
	return Defaults{
		Engine:           s.settings.Engine,
		Workers:          s.settings.Workers,
		MaxIterationsCap: s.settings.MaxIterationsCap,
		Policy:           portfolio.DefaultPolicyParams(),
		TargetMetrics:    DefaultTargetMetrics(),
	}
}

// Run validates req and searches for the best allocation sequence.
//
// Invalid requests return mcts.ValidationErrors or a *mcts.ConfigError. A
// cancelled ctx is not an error: the response carries the truncated result.
func (s *Service) Run(ctx context.Context, req *Request) (*Response, error) {
	started := time.Now()

	resp, err := s.run(ctx, req)

	status := StatusCompleted
	var iterations uint64
	workers := 0
	switch {
	case err != nil && IsInvalidRequest(err):
		status = StatusInvalid
	case err != nil:
		status = StatusFailed
	default:
		iterations = resp.Result.Iterations
		workers = resp.Workers
		if resp.Result.Truncated {
			status = StatusTruncated
		}
	}
	if s.observer != nil {
		s.observer.ObserveRun(status, iterations, workers, time.Since(started))
	}

	return resp, err
}

func (s *Service) run(ctx context.Context, req *Request) (*Response, error) {
	if errs := req.Validate(s.settings.MaxIterationsCap); len(errs) > 0 {
		return nil, errs
	}

	params := portfolio.DefaultPolicyParams()
	if req.Policy != nil {
		params = *req.Policy
	}
	if req.RiskTolerance != nil {
		params.RiskTolerance = *req.RiskTolerance
	}

	policy, err := portfolio.NewPolicy(req.MarketData, params, s.log)
	if err != nil {
		return nil, err
	}

	initial := req.InitialState()
	for _, id := range initial.AssetIDs() {
		if _, ok := req.MarketData.Assets[id]; !ok {
			s.log.Warn().Str("asset", id).Msg("Portfolio holds an asset without market data")
		}
	}
	initial.Risks = policy.Risks(initial)

	cfg := s.engineConfig(req.Engine)
	workers := s.settings.Workers
	if req.Engine.Workers > 0 {
		workers = req.Engine.Workers
	}
	workers = min(workers, cfg.MaxIterations)

	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	engine, err := mcts.NewEngine(cfg, log, mcts.WithDetailedProgress(func(u progress.Update) {
		log.Debug().
			Int("worker", u.Worker).
			Int("current", u.Current).
			Int("total", u.Total).
			Interface("details", u.Details).
			Msg(u.Message)
	}))
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("assets", len(initial.Assets)).
		Int("iterations", cfg.MaxIterations).
		Int("workers", workers).
		Msg("Starting simulation")
	s.publish(runID, &events.SimulationStartedData{
		Assets:     len(initial.Assets),
		Iterations: cfg.MaxIterations,
		Workers:    workers,
	})

	started := time.Now()
	var result *mcts.SimulationResult
	if workers > 1 {
		result, err = engine.RunParallel(ctx, initial, policy.Problem(), workers)
	} else {
		result, err = engine.Run(ctx, initial, policy.Problem())
	}
	if err != nil {
		s.publish(runID, &events.SimulationFailedData{Error: err.Error()})
		return nil, fmt.Errorf("simulation %s failed: %w", runID, err)
	}
	elapsed := time.Since(started)
	s.publish(runID, &events.SimulationCompletedData{
		Iterations:     result.Iterations,
		ExpectedReturn: result.ExpectedReturn,
		RiskAssessment: result.RiskAssessment,
		Truncated:      result.Truncated,
		ElapsedMs:      elapsed.Milliseconds(),
	})

	log.Info().
		Uint64("iterations", result.Iterations).
		Float64("expected_return", result.ExpectedReturn).
		Float64("risk_assessment", result.RiskAssessment).
		Bool("truncated", result.Truncated).
		Dur("elapsed", elapsed).
		Msg("Simulation completed")

	return &Response{
		RunID:             runID,
		Result:            result,
		InitialRisks:      initial.Risks,
		InitialEvaluation: policy.Evaluate(initial),
		Engine:            cfg,
		Workers:           workers,
		ElapsedMs:         elapsed.Milliseconds(),
	}, nil
}

// engineConfig overlays the request's engine settings on the defaults. Supplied
// values are copied unchanged so that mcts.Config.Validate sees them.
func (s *Service) engineConfig(e EngineSettings) mcts.Config {
	cfg := s.settings.Engine
	if e.MaxIterations != nil {
		cfg.MaxIterations = *e.MaxIterations
	}
	if e.ExplorationConstant != nil {
		cfg.ExplorationConstant = *e.ExplorationConstant
	}
	if e.MaxRolloutDepth != nil {
		cfg.MaxRolloutDepth = *e.MaxRolloutDepth
	}
	if e.Seed != nil {
		seed := *e.Seed
		cfg.Seed = &seed
	}
	if e.TimeBudgetMs > 0 {
		cfg.TimeBudget = time.Duration(e.TimeBudgetMs) * time.Millisecond
	}
	return cfg
}
