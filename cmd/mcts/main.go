// Command mcts runs portfolio simulations from scenario files or serves the
// simulation API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	CMDRoot.AddCommand(CMDSimulate)
	CMDRoot.AddCommand(CMDServe)

	CMDRoot.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	CMDRoot.PersistentFlags().Bool("pretty", false, "human-readable log output")
}

var CMDRoot = &cobra.Command{
	Use:           "mcts",
	Short:         "Monte Carlo Tree Search portfolio simulator",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := CMDRoot.Execute(); err != nil {
		os.Exit(1)
	}
}
