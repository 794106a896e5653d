// Package main provides the logishift CLI: the content pipeline (run) and the
// standalone relevance scorer (score).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "logishift",
		Short: "LogiShift logistics news pipeline",
		Long: `LogiShift collects logistics news feeds, scores each article for relevance,
and writes and publishes articles for the best candidates.

Configuration is read from --config (YAML or JSON), environment variables and
built-in defaults. Command-line flags override configured values.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a config file (yaml or json)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newScoreCmd())
	return root
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
