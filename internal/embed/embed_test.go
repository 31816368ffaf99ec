package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/webseek/webseek/internal/errors"
)

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "all-minilm", req.Model)
		resp := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float32{3, 4, 0}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "all-minilm", 3)
	vecs, err := e.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	// Normalized: (3,4,0) -> (0.6, 0.8, 0).
	assert.InDelta(t, 0.6, float64(vecs[0][0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vecs[0][1]), 1e-6)
}

func TestOllamaEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "m", 2)
	vecs, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbedPermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "m", 2)
	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodePermanentRemote, werrors.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load(), "permanent errors are not retried")
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	e := NewOllama(srv.URL, "m", 1)
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeEmbedding, werrors.CodeOf(err))
}

func TestOllamaEmbedEmptyInput(t *testing.T) {
	e := NewOllama("http://unused", "m", 3)
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStatic(64)
	a, err := e.Embed(context.Background(), []string{"vector search engine"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"vector search engine"})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestStaticEmbedderUnitNorm(t *testing.T) {
	e := NewStatic(64)
	vecs, err := e.Embed(context.Background(), []string{"some text here"})
	require.NoError(t, err)
	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestStaticEmbedderOverlapCorrelates(t *testing.T) {
	e := NewStatic(128)
	vecs, err := e.Embed(context.Background(), []string{
		"golang concurrency patterns",
		"golang concurrency tutorial",
		"french cooking recipes",
	})
	require.NoError(t, err)

	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]),
		"shared tokens should score higher")
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, []float32{0, 0, 0}, Normalize(v))
	assert.False(t, math.IsNaN(float64(v[0])))
}
