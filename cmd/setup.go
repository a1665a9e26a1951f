package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/threadcart/threadcart/internal/config"
	"github.com/threadcart/threadcart/internal/knowledge"
	"github.com/threadcart/threadcart/internal/llm"
	"github.com/threadcart/threadcart/internal/log"
	"github.com/threadcart/threadcart/internal/vectorstore"
)

// documentsFile is the optional catalog override inside the data dir.
const documentsFile = "documents.json"

// vectorsDir keeps persisted collections out of the data dir root so the
// documents override is never mistaken for a collection file.
const vectorsDir = "vectors"

func documentsPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, documentsFile)
}

// newProvider builds the OpenAI adapter from config. The same adapter serves
// both completion and embedding calls.
func newProvider(cfg *config.Config, logger log.Logger) (*llm.OpenAI, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	provider, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:        cfg.OpenAIAPIKey,
		Model:         cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
		BaseURL:       cfg.OpenAIBaseURL,
		Logger:        logger.With("component", "llm"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating model provider: %w", err)
	}
	return provider, nil
}

func openVectorStore(cfg *config.Config, logger log.Logger) (*vectorstore.Store, error) {
	store, err := vectorstore.New(filepath.Join(cfg.DataDir, vectorsDir),
		logger.With("component", "vectorstore"))
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return store, nil
}

// loadCatalog returns the documents override when present, the built-in
// catalog otherwise.
func loadCatalog(cfg *config.Config, logger log.Logger) (knowledge.Catalog, error) {
	path := documentsPath(cfg)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return knowledge.Catalog{}, fmt.Errorf("checking documents file: %w", err)
		}
		logger.Debug("no documents override, using built-in catalog", "path", path)
		return knowledge.Default(), nil
	}

	catalog, err := knowledge.Load(path)
	if err != nil {
		return knowledge.Catalog{}, fmt.Errorf("loading documents override: %w", err)
	}
	logger.Info("loaded documents override", "path", path)
	return catalog, nil
}

// buildIndex embeds the catalog and replaces the persisted collections.
func buildIndex(ctx context.Context, cfg *config.Config, provider llm.Embedder, store *vectorstore.Store, logger log.Logger) error {
	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
	}

	builder := knowledge.NewBuilder(provider, store, logger.With("component", "knowledge"))
	if err := builder.Build(ctx, catalog); err != nil {
		return fmt.Errorf("building knowledge index: %w", err)
	}
	return nil
}
