package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/threadcart/threadcart/internal/llm"
	"github.com/threadcart/threadcart/internal/vectorstore"
)

// Builder embeds a catalog and upserts it into the vector index.
type Builder struct {
	embedder llm.Embedder
	store    *vectorstore.Store
	logger   *slog.Logger
}

// NewBuilder creates a builder.
func NewBuilder(embedder llm.Embedder, store *vectorstore.Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{embedder: embedder, store: store, logger: logger}
}

// Build embeds every document in the catalog, one batch per collection, and
// replaces each collection in the index. Running it again with the same
// catalog replaces the collections rather than appending.
func (b *Builder) Build(ctx context.Context, catalog Catalog) error {
	collections := catalog.Collections()

	// Deterministic build order makes logs comparable between runs.
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := b.buildCollection(ctx, name, collections[name]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildCollection(ctx context.Context, name string, docs []Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.EmbedText()
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding collection %s: %w", name, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding collection %s: got %d vectors for %d documents", name, len(vectors), len(docs))
	}

	entries := make([]vectorstore.Entry, len(docs))
	for i, d := range docs {
		entries[i] = vectorstore.Entry{
			ID:        d.ID,
			Content:   d.EmbedText(),
			Embedding: vectors[i],
			Metadata:  d.Metadata(),
		}
	}

	if err := b.store.Upsert(name, entries); err != nil {
		return fmt.Errorf("indexing collection %s: %w", name, err)
	}

	b.logger.Info("knowledge collection indexed", "collection", name, "documents", len(docs))
	return nil
}
