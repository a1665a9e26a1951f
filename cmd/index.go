package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/threadcart/threadcart/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the knowledge base index",
	Long: `Rebuild the knowledge base index and exit.

Embeds the document catalog (the built-in set, or the documents override in
the data dir) and replaces the persisted vector collections. The serve
command does this at startup too; index exists for pre-warming a deployment
or refreshing after editing the documents file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIndex(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}
	vectors, err := openVectorStore(cfg, logger)
	if err != nil {
		return err
	}

	if err := buildIndex(ctx, cfg, provider, vectors, logger); err != nil {
		return err
	}

	logger.Info("knowledge index rebuilt", "data_dir", cfg.DataDir)
	return nil
}
