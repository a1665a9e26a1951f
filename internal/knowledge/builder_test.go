package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadcart/threadcart/internal/log"
	"github.com/threadcart/threadcart/internal/testutil"
	"github.com/threadcart/threadcart/internal/vectorstore"
)

func newTestBuilder(t *testing.T) (*Builder, *vectorstore.Store, *testutil.MockEmbedder) {
	t.Helper()
	store, err := vectorstore.New("", log.NewNop())
	require.NoError(t, err)
	embedder := testutil.NewMockEmbedder(8)
	return NewBuilder(embedder, store, log.NewNop()), store, embedder
}

func TestBuildIndexesAllCollections(t *testing.T) {
	builder, store, _ := newTestBuilder(t)

	require.NoError(t, builder.Build(context.Background(), Default()))

	assert.Equal(t, 3, store.Size(CollectionProducts))
	assert.Equal(t, 5, store.Size(CollectionFAQ))
	assert.Equal(t, 3, store.Size(CollectionPolicies))
	assert.Equal(t, []string{CollectionFAQ, CollectionPolicies, CollectionProducts}, store.Collections())
}

func TestBuildIsIdempotent(t *testing.T) {
	builder, store, _ := newTestBuilder(t)
	catalog := Default()

	require.NoError(t, builder.Build(context.Background(), catalog))
	require.NoError(t, builder.Build(context.Background(), catalog))

	// Rebuilding replaces collections rather than appending to them.
	assert.Equal(t, 3, store.Size(CollectionProducts))
	assert.Equal(t, 5, store.Size(CollectionFAQ))
	assert.Equal(t, 3, store.Size(CollectionPolicies))
}

func TestBuildEmbedsFAQAsQuestionAnswerPair(t *testing.T) {
	builder, store, embedder := newTestBuilder(t)
	probe := []float64{1, 0, 0, 0, 0, 0, 0, 0}

	catalog := Catalog{FAQ: []Document{{
		ID:       "faq_x",
		Type:     TypeFAQ,
		Question: "Do you ship overseas?",
		Content:  "Yes, to most countries.",
		Category: "shipping",
	}}}
	embedder.SetVector("Question: Do you ship overseas? Answer: Yes, to most countries.", probe)

	require.NoError(t, builder.Build(context.Background(), catalog))

	results := store.Search(probe, 1, CollectionFAQ)
	require.Len(t, results, 1)
	assert.Equal(t, "faq_x", results[0].Entry.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, TypeFAQ, results[0].Entry.Metadata["type"])
	assert.Equal(t, "Do you ship overseas?", results[0].Entry.Metadata["question"])
}

func TestBuildPropagatesEmbedderFailure(t *testing.T) {
	builder, _, embedder := newTestBuilder(t)
	embedder.SetError(errors.New("provider down"))

	err := builder.Build(context.Background(), Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestDocumentMetadataFlattensLists(t *testing.T) {
	doc := Default().Products[0]
	m := doc.Metadata()

	assert.Equal(t, TypeProduct, m["type"])
	assert.Equal(t, "My AI is Smarter Than Your Honor Student", m["name"])
	assert.Equal(t, "humor", m["category"])
	assert.Equal(t, "S, M, L", m["sizes"])
	assert.Equal(t, "Black, White, Light Blue", m["colors"])
}

func TestDefaultCatalogIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.json")

	require.NoError(t, os.WriteFile(path, []byte(`{
		"products": [{"id": "p1", "type": "product", "name": "Test Tee", "content": "A test tee."}],
		"faq": [{"id": "f1", "type": "faq", "question": "Q?", "content": "A."}],
		"policies": []
	}`), 0o600))

	catalog, err := Load(path)
	require.NoError(t, err)

	require.Len(t, catalog.Products, 1)
	assert.Equal(t, "Test Tee", catalog.Products[0].Name)
	require.Len(t, catalog.FAQ, 1)
	assert.Empty(t, catalog.Policies)
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"duplicate id":     `{"products": [{"id": "x", "type": "product", "content": "a"}, {"id": "x", "type": "product", "content": "b"}]}`,
		"empty content":    `{"faq": [{"id": "f1", "type": "faq", "question": "Q?"}]}`,
		"faq w/o question": `{"faq": [{"id": "f1", "type": "faq", "content": "A."}]}`,
		"not json":         `{{{`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestWatcherFiresOnCatalogChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.json")

	changed := make(chan struct{}, 1)
	w, err := Watch(path, log.NewNop(), func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire after catalog write")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.json")

	changed := make(chan struct{}, 1)
	w, err := Watch(path, log.NewNop(), func() {
		changed <- struct{}{}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o600))

	select {
	case <-changed:
		t.Fatal("watcher fired for an unrelated file")
	case <-time.After(time.Second):
	}
}
