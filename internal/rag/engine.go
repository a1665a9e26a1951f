// Package rag answers knowledge-base queries: embed the query, search the
// vector index, format the top hits into a readable reply for the model to
// relay. Failures degrade to fixed messages; the caller never sees an error.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/threadcart/threadcart/internal/knowledge"
	"github.com/threadcart/threadcart/internal/llm"
	"github.com/threadcart/threadcart/internal/vectorstore"
)

// DefaultTopK is the number of results returned when the caller does not ask
// for a specific count.
const DefaultTopK = 3

// Fixed degradation messages. These are user-visible through the model, so
// they read as the assistant speaking.
const (
	msgCannotProcess = "I'm sorry, I couldn't process your search query at the moment."
	msgNothingFound  = "I couldn't find any relevant information for your query."
)

// descriptionLimit truncates product descriptions in formatted results.
const descriptionLimit = 200

// Engine is the retrieval pipeline. Safe for concurrent use: searches only
// read the shared index.
type Engine struct {
	embedder llm.Embedder
	store    *vectorstore.Store
	logger   *slog.Logger
}

// New creates a retrieval engine.
func New(embedder llm.Embedder, store *vectorstore.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: embedder, store: store, logger: logger}
}

// Search embeds the query, runs a similarity search and formats the results.
// topK <= 0 means DefaultTopK; an empty collection searches everything.
// Always returns displayable text, never an error.
func (e *Engine) Search(ctx context.Context, query string, topK int, collection string) string {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil || len(vector) == 0 {
		e.logger.Warn("query embedding failed", "error", err)
		return msgCannotProcess
	}

	results := e.store.Search(vector, topK, collection)
	if len(results) == 0 {
		return msgNothingFound
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = formatResult(r.Entry)
	}

	var intro string
	if len(results) > 1 {
		intro = fmt.Sprintf("Here's what I found related to your query about '%s':", query)
	} else {
		intro = fmt.Sprintf("Here's what I found about '%s':", query)
	}
	return intro + "\n\n" + strings.Join(parts, "\n\n")
}

func formatResult(entry vectorstore.Entry) string {
	switch entry.Metadata["type"] {
	case knowledge.TypeProduct:
		return formatProduct(entry)
	case knowledge.TypeFAQ:
		return formatFAQ(entry)
	case knowledge.TypePolicy:
		return formatPolicy(entry)
	default:
		return "**Relevant Information**\n" + entry.Content
	}
}

func formatProduct(entry vectorstore.Entry) string {
	name := entry.Metadata["name"]
	if name == "" {
		name = "Unknown Product"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", name)
	fmt.Fprintf(&b, "Category: %s\n", titleCase(entry.Metadata["category"]))
	if sizes := entry.Metadata["sizes"]; sizes != "" {
		fmt.Fprintf(&b, "Available sizes: %s\n", sizes)
	}
	if colors := entry.Metadata["colors"]; colors != "" {
		fmt.Fprintf(&b, "Available colors: %s\n", colors)
	}

	description := entry.Content
	if len(description) > descriptionLimit {
		description = description[:descriptionLimit] + "..."
	}
	b.WriteString("\n" + description)
	return b.String()
}

func formatFAQ(entry vectorstore.Entry) string {
	category := titleCase(entry.Metadata["category"])

	// FAQ content is embedded as "Question: ... Answer: ...".
	if q, a, ok := splitQA(entry.Content); ok {
		return fmt.Sprintf("**%s FAQ**\nQ: %s\nA: %s", category, q, a)
	}
	return fmt.Sprintf("**%s Information**\n%s", category, entry.Content)
}

func splitQA(content string) (question, answer string, ok bool) {
	before, after, found := strings.Cut(content, "Answer:")
	if !found || !strings.Contains(before, "Question:") {
		return "", "", false
	}
	question = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(before), "Question:"))
	answer = strings.TrimSpace(after)
	return question, answer, true
}

func formatPolicy(entry vectorstore.Entry) string {
	return fmt.Sprintf("**%s Policy**\n%s", titleCase(entry.Metadata["category"]), entry.Content)
}

// titleCase capitalizes the first letter of each space-separated word. The
// category vocabulary is plain ASCII, so byte-level casing is fine.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
