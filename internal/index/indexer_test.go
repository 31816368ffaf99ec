package index

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webseek/webseek/internal/embed"
	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/semindex"
	"github.com/webseek/webseek/internal/store"
)

func newFixture(t *testing.T) (*Indexer, *store.Store, *semindex.Index) {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	emb := embed.NewStatic(32)
	vecs := semindex.New(32)
	ix := New(st, emb, vecs, 8, 2, nil)
	return ix, st, vecs
}

func TestIndexDocument(t *testing.T) {
	ix, st, vecs := newFixture(t)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID:           "d1",
		URL:          "https://example.com",
		Title:        "Go Concurrency",
		CleanContent: "Go channels make concurrent programming simple and safe",
	}))
	require.NoError(t, ix.IndexDocument(ctx, "d1"))

	postings, err := st.PostingsForTerms(ctx, []string{"channel", "concurr"})
	require.NoError(t, err)
	assert.Len(t, postings["channel"], 1)
	assert.Len(t, postings["concurr"], 1)

	doc, err := st.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.NotNil(t, doc.IndexedAt)
	assert.Greater(t, doc.TokenCount, 0)

	assert.Greater(t, vecs.Len(), 0)
	n, err := st.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, vecs.Len(), n)
}

func TestIndexDocumentChunksLongContent(t *testing.T) {
	ix, st, vecs := newFixture(t)
	ctx := context.Background()

	long := strings.Repeat("alpha beta gamma delta ", 10) // 40 words, chunk size 8
	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: "d1", URL: "u", CleanContent: long,
	}))
	require.NoError(t, ix.IndexDocument(ctx, "d1"))
	assert.Greater(t, vecs.Len(), 1)
}

func TestIndexDocumentEmptyContentLeavesNoTrace(t *testing.T) {
	ix, st, vecs := newFixture(t)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: "blank", URL: "https://example.com/blank", Title: "Blank", CleanContent: "   ",
	}))
	require.NoError(t, ix.IndexDocument(ctx, "blank"))

	// No postings, no chunks, no indexed stamp, and nothing dragging the
	// collection averages toward zero.
	doc, err := st.GetDocument(ctx, "blank")
	require.NoError(t, err)
	assert.Nil(t, doc.IndexedAt)
	assert.Zero(t, doc.TokenCount)

	stats, err := st.GetCollectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
	assert.Equal(t, 0, vecs.Len())
}

func TestIndexDocumentMissing(t *testing.T) {
	ix, _, _ := newFixture(t)
	err := ix.IndexDocument(context.Background(), "ghost")
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.CodeOf(err))
}

func TestReindexReplacesPostings(t *testing.T) {
	ix, st, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: "d1", URL: "u", CleanContent: "original keyword content",
	}))
	require.NoError(t, ix.IndexDocument(ctx, "d1"))
	// Same document, new content.
	require.NoError(t, st.DeleteDocument(ctx, "d1"))
	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: "d1", URL: "u", CleanContent: "replacement text entirely",
	}))
	require.NoError(t, ix.IndexDocument(ctx, "d1"))

	postings, err := st.PostingsForTerms(ctx, []string{"keyword", "replac"})
	require.NoError(t, err)
	assert.Empty(t, postings["keyword"])
	assert.Len(t, postings["replac"], 1)
}

type failingEmbedder struct{ dims int }

func (f *failingEmbedder) Dimensions() int { return f.dims }
func (f *failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, werrors.New(werrors.ErrCodeRetryableRemote, "embedder offline")
}

func TestEmbeddingFailureKeepsPostings(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ix := New(st, &failingEmbedder{dims: 32}, semindex.New(32), 8, 2, nil)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: "d1", URL: "u", CleanContent: "searchable despite embedding outage",
	}))

	err = ix.IndexDocument(ctx, "d1")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeEmbedding, werrors.CodeOf(err))

	// Keyword search half committed anyway.
	postings, perr := st.PostingsForTerms(ctx, []string{"searchabl"})
	require.NoError(t, perr)
	assert.Len(t, postings["searchabl"], 1)
}

func TestIndexNew(t *testing.T) {
	ix, st, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, &store.Document{ID: "a", URL: "u1", CleanContent: "first doc"}))
	require.NoError(t, st.InsertDocument(ctx, &store.Document{ID: "b", URL: "u2", CleanContent: "second doc"}))
	require.NoError(t, ix.IndexDocument(ctx, "a"))

	n, err := ix.IndexNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := st.ListUnindexedIDs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPopulateTitleTerms(t *testing.T) {
	ix, st, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: "a", URL: "u1", Title: "The Go Programming Language",
	}))
	require.NoError(t, ix.PopulateTitleTerms(ctx))

	top, err := st.TopTerms(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "the go programming language", top[0].Term)
	assert.Equal(t, 5, top[0].Frequency)
}
