// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/mcts"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/modules/simulation"
)

// Config holds application configuration
type Config struct {
	LogLevel string
	Port     int
	DevMode  bool

	// Search defaults, overridable per request
	MaxIterations       int
	ExplorationConstant float64
	MaxRolloutDepth     int
	TimeBudget          time.Duration // zero disables the wall-clock budget
	Workers             int

	// MaxIterationsCap rejects requests asking for more iterations
	MaxIterationsCap int

	// Simulation endpoint throttling, requests per second and burst
	SimulationRateLimit float64
	SimulationRateBurst int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnvAsInt("PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		MaxIterations:       getEnvAsInt("MCTS_MAX_ITERATIONS", mcts.DefaultMaxIterations),
		ExplorationConstant: getEnvAsFloat("MCTS_EXPLORATION_CONSTANT", mcts.DefaultExplorationConstant),
		MaxRolloutDepth:     getEnvAsInt("MCTS_MAX_ROLLOUT_DEPTH", mcts.DefaultMaxRolloutDepth),
		TimeBudget:          getEnvAsDuration("MCTS_TIME_BUDGET", 0),
		Workers:             getEnvAsInt("MCTS_WORKERS", 1),
		MaxIterationsCap:    getEnvAsInt("MCTS_MAX_ITERATIONS_CAP", 1000000),
		SimulationRateLimit: getEnvAsFloat("SIMULATION_RATE_LIMIT", 2),
		SimulationRateBurst: getEnvAsInt("SIMULATION_RATE_BURST", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid search defaults: %w", err)
	}
	if c.Workers < 1 || c.Workers > simulation.MaxWorkers {
		return fmt.Errorf("MCTS_WORKERS must be between 1 and %d, got %d", simulation.MaxWorkers, c.Workers)
	}
	if c.MaxIterationsCap < c.MaxIterations {
		return fmt.Errorf("MCTS_MAX_ITERATIONS_CAP (%d) must not be below MCTS_MAX_ITERATIONS (%d)", c.MaxIterationsCap, c.MaxIterations)
	}
	if c.SimulationRateLimit <= 0 || c.SimulationRateBurst <= 0 {
		return fmt.Errorf("SIMULATION_RATE_LIMIT and SIMULATION_RATE_BURST must be positive")
	}
	return nil
}

// EngineConfig returns the search defaults as an engine configuration
func (c *Config) EngineConfig() mcts.Config {
	cfg := mcts.DefaultConfig()
	cfg.MaxIterations = c.MaxIterations
	cfg.ExplorationConstant = c.ExplorationConstant
	cfg.MaxRolloutDepth = c.MaxRolloutDepth
	cfg.TimeBudget = c.TimeBudget
	return cfg
}

// SimulationSettings returns the simulation service settings
func (c *Config) SimulationSettings() simulation.Settings {
	return simulation.Settings{
		Engine:           c.EngineConfig(),
		Workers:          c.Workers,
		MaxIterationsCap: c.MaxIterationsCap,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
