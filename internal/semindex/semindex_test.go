package semindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/store"
)

func TestSearchRanksByCosine(t *testing.T) {
	x := New(3)
	require.NoError(t, x.Add("a", 0, []float32{1, 0, 0}))
	require.NoError(t, x.Add("b", 0, []float32{0.9, 0.1, 0}))
	require.NoError(t, x.Add("c", 0, []float32{0, 1, 0}))

	hits, err := x.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].DocumentID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "b", hits[1].DocumentID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestSearchEmptyIndex(t *testing.T) {
	x := New(3)
	hits, err := x.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReplaceDocument(t *testing.T) {
	x := New(2)
	require.NoError(t, x.ReplaceDocument("doc", [][]float32{{1, 0}, {0, 1}}))
	assert.Equal(t, 2, x.Len())

	require.NoError(t, x.ReplaceDocument("doc", [][]float32{{0, 1}}))
	assert.Equal(t, 1, x.Len())

	hits, err := x.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1, "orphaned chunks must not surface")
	assert.Equal(t, 0, hits[0].ChunkIndex)
}

func TestRemoveDocument(t *testing.T) {
	x := New(2)
	require.NoError(t, x.Add("a", 0, []float32{1, 0}))
	require.NoError(t, x.Add("b", 0, []float32{0, 1}))
	x.RemoveDocument("a")

	hits, err := x.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].DocumentID)
}

func TestDimensionMismatch(t *testing.T) {
	x := New(3)
	err := x.Add("a", 0, []float32{1, 0})
	assert.Equal(t, werrors.ErrCodeEmbedding, werrors.CodeOf(err))

	_, err = x.Search([]float32{1, 0}, 1)
	assert.Equal(t, werrors.ErrCodeEmbedding, werrors.CodeOf(err))
}

func TestLoad(t *testing.T) {
	x := New(2)
	err := x.Load([]store.Chunk{
		{DocumentID: "a", Index: 0, Embedding: []float32{1, 0}},
		{DocumentID: "a", Index: 1, Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, x.Len())
}
