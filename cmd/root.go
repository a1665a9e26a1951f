// Package cmd wires the threadcart CLI: serve runs the HTTP assistant,
// index rebuilds the knowledge base, version prints build information.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/threadcart/threadcart/internal/log"
)

var (
	flagDebug    bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "threadcart",
	Short: "ThreadCart - conversational t-shirt shop assistant",
	Long: `ThreadCart is a conversational shop assistant for a t-shirt store.

It answers product, FAQ and policy questions from a local knowledge base and
executes shop actions (inventory lookup, cart changes, order placement) as
model tool calls. Run "threadcart serve" to start the HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "write logs as JSON")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLogs})
}
