package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/config"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/modules/simulation"
	"github.com/plturrell/scb-sapphire-finsight-sub010/pkg/logger"
)

// Output formats of the simulate command.
const (
	formatJSON    = "json"
	formatYAML    = "yaml"
	formatMsgpack = "msgpack"
)

func init() {
	addSimulateFlags(CMDSimulate)
	_ = CMDSimulate.MarkFlagRequired("scenario")
}

func addSimulateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("scenario", "s", "", "scenario file (YAML or JSON)")
	cmd.Flags().Int64("seed", 0, "random seed; overrides the scenario seed")
	cmd.Flags().Int("iterations", 0, "search iterations; overrides the scenario")
	cmd.Flags().Int("workers", 0, "root-parallel workers; overrides the scenario")
	cmd.Flags().StringP("format", "f", formatJSON, "output format: json, yaml or msgpack")
}

var CMDSimulate = &cobra.Command{
	Use:   "simulate",
	Short: "Run one simulation from a scenario file and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := commandLogger(cmd, cfg)

		path, _ := cmd.Flags().GetString("scenario")
		req, err := simulation.LoadScenario(path)
		if err != nil {
			return err
		}

		applyEngineFlags(cmd, req)
		format, _ := cmd.Flags().GetString("format")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := simulation.NewService(cfg.SimulationSettings(), nil, log)
		return runSimulation(ctx, svc, req, format, cmd.OutOrStdout())
	},
}

// applyEngineFlags copies the engine flags the user set onto req. Values are
// copied as given and validated with the rest of the request.
func applyEngineFlags(cmd *cobra.Command, req *simulation.Request) {
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		req.Engine.Seed = &seed
	}
	if cmd.Flags().Changed("iterations") {
		iterations, _ := cmd.Flags().GetInt("iterations")
		req.Engine.MaxIterations = &iterations
	}
	if cmd.Flags().Changed("workers") {
		req.Engine.Workers, _ = cmd.Flags().GetInt("workers")
	}
}

// runSimulation runs req and writes the response in format.
func runSimulation(ctx context.Context, svc *simulation.Service, req *simulation.Request, format string, out io.Writer) error {
	if !validFormat(format) {
		return fmt.Errorf("unknown output format %q (want json, yaml or msgpack)", format)
	}

	resp, err := svc.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	return writeResponse(out, resp, format)
}

func validFormat(format string) bool {
	switch format {
	case formatJSON, formatYAML, formatMsgpack:
		return true
	}
	return false
}

func writeResponse(out io.Writer, resp *simulation.Response, format string) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case formatMsgpack:
		if err := msgpack.NewEncoder(out).Encode(resp); err != nil {
			return fmt.Errorf("encode msgpack: %w", err)
		}
		return nil
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// commandLogger builds the logger from config and the persistent log flags.
// Logs go to stderr so they never mix with the printed result.
func commandLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = flag
	}
	pretty, _ := cmd.Flags().GetBool("pretty")

	log := logger.New(logger.Config{
		Level:  level,
		Pretty: pretty,
		Output: cmd.ErrOrStderr(),
	})
	logger.SetGlobalLogger(log)
	return log
}
