// Package vectorstore implements a small flat-file vector index.
//
// Entries live in named collections. A collection is replaced wholesale on
// every upsert: the new entry list is persisted to disk first, then swapped
// into memory under the write lock, so concurrent readers never observe a
// half-written collection. This is deliberately not a production vector
// database; the catalog it serves is small and static.
package vectorstore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Entry is one indexed document: the embedded content, its vector and the
// source document's metadata, carried through search for result formatting.
type Entry struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float64         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Result pairs an entry with its similarity score for one search.
type Result struct {
	Entry Entry
	Score float64
}

// Store holds named collections of vector entries.
// Safe for concurrent use: searches share a read lock, upserts take the
// write lock only for the in-memory swap.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]Entry

	dir    string // empty = in-memory only
	logger *slog.Logger
}

// New creates a store backed by the given directory. Any collections
// previously persisted there are loaded. An empty dir keeps the store
// memory-only, which tests use.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		collections: make(map[string][]Entry),
		dir:         dir,
		logger:      logger,
	}

	if dir != "" {
		if err := s.loadAll(); err != nil {
			return nil, fmt.Errorf("loading persisted collections: %w", err)
		}
	}

	return s, nil
}

// Upsert replaces the named collection wholesale. The entries are persisted
// first; only after a successful write is the in-memory copy swapped, so a
// failed persist leaves the previous collection intact.
func (s *Store) Upsert(name string, entries []Entry) error {
	if name == "" {
		return fmt.Errorf("upsert: collection name must not be empty")
	}

	// Copy so later caller mutations cannot alias into the store.
	owned := make([]Entry, len(entries))
	copy(owned, entries)

	if s.dir != "" {
		if err := s.persist(name, owned); err != nil {
			return fmt.Errorf("persisting collection %q: %w", name, err)
		}
	}

	s.mu.Lock()
	s.collections[name] = owned
	s.mu.Unlock()

	s.logger.Debug("collection upserted", "collection", name, "entries", len(owned))
	return nil
}

// Search computes cosine similarity between the query vector and every entry
// in the selected collection (or the union of all collections when name is
// empty) and returns the topK highest-scoring results in descending order.
// Ties keep input order; first-seen wins. topK larger than the collection
// returns everything.
func (s *Store) Search(query []float64, topK int, collection string) []Result {
	if topK <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Result
	for _, name := range s.selectedLocked(collection) {
		for _, entry := range s.collections[name] {
			results = append(results, Result{
				Entry: entry,
				Score: CosineSimilarity(query, entry.Embedding),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// selectedLocked returns the collection names to search, in deterministic
// order. Callers must hold at least the read lock.
func (s *Store) selectedLocked(collection string) []string {
	if collection != "" {
		if _, ok := s.collections[collection]; !ok {
			return nil
		}
		return []string{collection}
	}

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collections returns the names of all known collections, sorted.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked("")
}

// Size returns the number of entries in the named collection.
func (s *Store) Size(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// CosineSimilarity returns the cosine of the angle between a and b:
// dot product divided by the product of magnitudes. It is exactly 0, not an
// error, when either vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}
