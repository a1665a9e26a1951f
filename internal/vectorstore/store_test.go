package vectorstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadcart/threadcart/internal/log"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("", log.NewNop())
	require.NoError(t, err)
	return s
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := []float64{0.3, 0.4, 0.5}
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-12)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 2}, []float64{-1, -2}), 1e-12)
	})

	t.Run("zero magnitude is exactly 0", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
		assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{0, 0}))
	})

	t.Run("length mismatch is 0", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 2}))
		assert.Equal(t, 0.0, CosineSimilarity(nil, []float64{1}))
	})
}

func TestSearchOrdersByDescendingScore(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.Upsert("products", []Entry{
		{ID: "far", Embedding: []float64{-1, 0}},
		{ID: "near", Embedding: []float64{1, 0.01}},
		{ID: "mid", Embedding: []float64{1, 1}},
	}))

	results := s.Search([]float64{1, 0}, 3, "products")

	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Entry.ID)
	assert.Equal(t, "mid", results[1].Entry.ID)
	assert.Equal(t, "far", results[2].Entry.ID)
	assert.True(t, results[0].Score >= results[1].Score)
	assert.True(t, results[1].Score >= results[2].Score)
}

func TestSearchTopKBounds(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.Upsert("faq", []Entry{
		{ID: "a", Embedding: []float64{1, 0}},
		{ID: "b", Embedding: []float64{0, 1}},
	}))

	assert.Len(t, s.Search([]float64{1, 0}, 1, "faq"), 1)
	// topK larger than collection returns everything, not an error.
	assert.Len(t, s.Search([]float64{1, 0}, 10, "faq"), 2)
	assert.Empty(t, s.Search([]float64{1, 0}, 0, "faq"))
}

func TestSearchTiesKeepInputOrder(t *testing.T) {
	s := newMemoryStore(t)
	// Both entries are identical to the query: equal scores.
	require.NoError(t, s.Upsert("policies", []Entry{
		{ID: "first", Embedding: []float64{2, 0}},
		{ID: "second", Embedding: []float64{4, 0}},
	}))

	results := s.Search([]float64{1, 0}, 2, "policies")

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Entry.ID)
	assert.Equal(t, "second", results[1].Entry.ID)
}

func TestSearchAllCollectionsIsGlobalTopK(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.Upsert("products", []Entry{
		{ID: "p1", Embedding: []float64{1, 0}},
	}))
	require.NoError(t, s.Upsert("faq", []Entry{
		{ID: "f1", Embedding: []float64{0, 1}},
		{ID: "f2", Embedding: []float64{1, 0.1}},
	}))

	results := s.Search([]float64{1, 0}, 2, "")

	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].Entry.ID)
	assert.Equal(t, "f2", results[1].Entry.ID)
}

func TestSearchUnknownCollection(t *testing.T) {
	s := newMemoryStore(t)
	assert.Empty(t, s.Search([]float64{1}, 3, "missing"))
}

func TestUpsertReplacesWholesale(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.Upsert("products", []Entry{
		{ID: "old-1", Embedding: []float64{1, 0}},
		{ID: "old-2", Embedding: []float64{0, 1}},
	}))
	require.NoError(t, s.Upsert("products", []Entry{
		{ID: "new-1", Embedding: []float64{1, 1}},
	}))

	assert.Equal(t, 1, s.Size("products"))
	results := s.Search([]float64{1, 1}, 10, "products")
	require.Len(t, results, 1)
	assert.Equal(t, "new-1", results[0].Entry.ID)
}

func TestUpsertIdempotentContent(t *testing.T) {
	s := newMemoryStore(t)
	entries := []Entry{
		{ID: "a", Embedding: []float64{1, 0}},
		{ID: "b", Embedding: []float64{0, 1}},
	}

	require.NoError(t, s.Upsert("faq", entries))
	require.NoError(t, s.Upsert("faq", entries))

	assert.Equal(t, 2, s.Size("faq"))
	results := s.Search([]float64{1, 0}, 10, "faq")
	ids := []string{results[0].Entry.ID, results[1].Entry.ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s1, err := New(dir, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.Upsert("products", []Entry{
		{ID: "p1", Content: "a shirt", Embedding: []float64{0.6, 0.8}, Metadata: map[string]string{"type": "product"}},
	}))

	// A fresh store over the same directory sees the persisted collection.
	s2, err := New(dir, log.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"products"}, s2.Collections())
	results := s2.Search([]float64{0.6, 0.8}, 1, "products")
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].Entry.ID)
	assert.Equal(t, "a shirt", results[0].Entry.Content)
	assert.Equal(t, "product", results[0].Entry.Metadata["type"])
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestConcurrentSearchDuringUpsert(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.Upsert("products", []Entry{{ID: "p", Embedding: []float64{1, 0}}}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = s.Upsert("products", []Entry{{ID: "p", Embedding: []float64{1, 0}}})
		}
	}()

	for i := 0; i < 200; i++ {
		results := s.Search([]float64{1, 0}, 1, "products")
		// Readers must always see a complete collection.
		require.Len(t, results, 1)
		require.False(t, math.IsNaN(results[0].Score))
	}
	<-done
}
