package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/threadcart/threadcart/internal/api"
	"github.com/threadcart/threadcart/internal/chat"
	"github.com/threadcart/threadcart/internal/config"
	"github.com/threadcart/threadcart/internal/knowledge"
	"github.com/threadcart/threadcart/internal/log"
	"github.com/threadcart/threadcart/internal/rag"
	"github.com/threadcart/threadcart/internal/session"
	"github.com/threadcart/threadcart/internal/shop"
	"github.com/threadcart/threadcart/internal/tools"
)

// requestsPerSecond is the per-IP sustained rate; the burst comes from
// config.
const requestsPerSecond = 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP assistant API",
	Long: `Start the assistant as an HTTP server.

The server seeds the demo catalog, builds the knowledge index, watches the
documents override for changes and serves chat turns over REST and WebSocket
until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()
	logger.Info("starting threadcart", "version", Version, "addr", cfg.ListenAddr)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	store, err := shop.Open(cfg.DatabasePath, logger.With("component", "shop"))
	if err != nil {
		return fmt.Errorf("opening shop database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("closing shop database", "error", closeErr)
		}
	}()

	if err := store.SeedVariants(ctx, shop.DefaultCatalog()); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	if err := seedDemoCustomer(ctx, store, logger); err != nil {
		return err
	}

	vectors, err := openVectorStore(cfg, logger)
	if err != nil {
		return err
	}
	if err := buildIndex(ctx, cfg, provider, vectors, logger); err != nil {
		return err
	}

	watcher, err := knowledge.Watch(documentsPath(cfg), logger.With("component", "knowledge"), func() {
		if err := buildIndex(context.Background(), cfg, provider, vectors, logger); err != nil {
			logger.Error("knowledge rebuild failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("watching documents file: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Warn("closing documents watcher", "error", closeErr)
		}
	}()

	retriever := rag.New(provider, vectors, logger.With("component", "rag"))

	registry, err := tools.NewShopRegistry(store, retriever, logger.With("component", "tools"))
	if err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	sessions := session.NewRegistry(session.Config{
		Capacity: cfg.SessionCapacity,
		IdleTTL:  cfg.SessionIdleTTL,
		Factory: func() *chat.Engine {
			return chat.NewEngine(chat.Config{
				Client:        provider,
				Registry:      registry,
				MaxToolCycles: cfg.MaxToolCycles,
				Logger:        logger.With("component", "chat"),
			})
		},
		Logger: logger.With("component", "session"),
	})
	defer sessions.Close()

	server := api.NewServer(sessions, requestsPerSecond, cfg.RateBurst,
		logger.With("component", "api"))
	return server.Run(ctx, cfg.ListenAddr)
}

// seedDemoCustomer creates the demo account when THREADCART_DEMO_TOKEN is
// set and the token is not already known. Restarts are idempotent.
func seedDemoCustomer(ctx context.Context, store *shop.Store, logger log.Logger) error {
	token := os.Getenv("THREADCART_DEMO_TOKEN")
	if token == "" {
		return nil
	}
	email := os.Getenv("THREADCART_DEMO_EMAIL")
	if email == "" {
		email = "demo@threadcart.example"
	}

	if _, err := store.CustomerForToken(ctx, token); err == nil {
		return nil
	} else if shop.StatusOf(err) != shop.StatusNotAuthenticated {
		return fmt.Errorf("checking demo token: %w", err)
	}

	if _, err := store.SeedCustomer(ctx, email, token); err != nil {
		return fmt.Errorf("seeding demo customer: %w", err)
	}
	logger.Info("seeded demo customer", "email", email)
	return nil
}
