package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "alliance",
		Short: "Alliance - repeated investment game between two AI-driven firms",
		Long: `alliance runs the Autonomous Motors / Motherboard Chips alliance game.

Each round both parties decide how many engineers (0-25) to commit to the
joint venture; payoffs come from a 26x26 table per party. Parties decide
with an LLM when one is configured and with scripted strategies otherwise.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.alliance/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newPlayCmd(),
		newPayoffsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
