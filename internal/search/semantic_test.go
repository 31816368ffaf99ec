package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webseek/webseek/internal/embed"
	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/semindex"
	"github.com/webseek/webseek/internal/store"
)

func newSemanticFixture(t *testing.T) (*SemanticSearcher, *store.Store, *semindex.Index, Embedder) {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	emb := embed.NewStatic(64)
	vecs := semindex.New(64)
	return NewSemantic(st, emb, vecs), st, vecs, emb
}

// addChunks stores and indexes chunks for a document using the fixture
// embedder.
func addChunks(t *testing.T, st *store.Store, vecs *semindex.Index, emb Embedder, docID string, texts []string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: docID, URL: "https://example.com/" + docID, Title: "Doc " + docID,
	}))
	vectors, err := emb.Embed(ctx, texts)
	require.NoError(t, err)
	chunks := make([]store.Chunk, len(texts))
	for i := range texts {
		chunks[i] = store.Chunk{DocumentID: docID, Index: i, Text: texts[i], Embedding: vectors[i]}
	}
	require.NoError(t, st.ReplaceChunks(ctx, docID, chunks))
	require.NoError(t, vecs.ReplaceDocument(docID, vectors))
}

func TestSemanticRanksByTokenOverlap(t *testing.T) {
	s, st, vecs, emb := newSemanticFixture(t)

	addChunks(t, st, vecs, emb, "go", []string{"golang concurrency channels goroutines"})
	addChunks(t, st, vecs, emb, "food", []string{"french cooking pastry recipes"})

	ranked, err := s.Rank(context.Background(), "golang concurrency", 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "go", ranked[0].DocumentID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestSemanticBestChunkPerDocument(t *testing.T) {
	s, st, vecs, emb := newSemanticFixture(t)

	addChunks(t, st, vecs, emb, "doc", []string{
		"golang concurrency channels select",
		"unrelated gardening topics entirely",
	})

	ranked, err := s.Rank(context.Background(), "golang concurrency channels", 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1, "one entry per document")
	assert.Contains(t, ranked[0].ChunkText, "golang")
}

func TestSemanticSearchHydration(t *testing.T) {
	s, st, vecs, emb := newSemanticFixture(t)

	addChunks(t, st, vecs, emb, "d1", []string{"vector embeddings semantic retrieval"})

	page, err := s.Search(context.Background(), "semantic embeddings", 1, 5)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	r := page.Results[0]
	assert.Equal(t, "d1", r.DocumentID)
	assert.Equal(t, "https://example.com/d1", r.URL)
	assert.Equal(t, "vector embeddings semantic retrieval", r.Snippet)
}

func TestSemanticEmptyIndex(t *testing.T) {
	s, _, _, _ := newSemanticFixture(t)
	page, err := s.Search(context.Background(), "anything", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Equal(t, 0, page.Total)
}

// downEmbedder simulates an unreachable embedding backend.
type downEmbedder struct{ dims int }

func (d *downEmbedder) Dimensions() int { return d.dims }
func (d *downEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, werrors.New(werrors.ErrCodeEmbedding, "embedding backend down")
}

func TestSemanticEmbedderDownReturnsEmpty(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := NewSemantic(st, &downEmbedder{dims: 64}, semindex.New(64))
	page, err := s.Search(context.Background(), "anything", 1, 5)
	require.NoError(t, err, "an embedding outage degrades to no hits, not an error")
	assert.Empty(t, page.Results)
	assert.Equal(t, 0, page.Total)
}
