package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webseek/webseek/internal/cache"
	"github.com/webseek/webseek/internal/embed"
	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/semindex"
	"github.com/webseek/webseek/internal/store"
)

type recordingRecorder struct{ queries []string }

func (r *recordingRecorder) RecordQuery(_ context.Context, q string) error {
	r.queries = append(r.queries, q)
	return nil
}

func newEngineFixture(t *testing.T) (*Engine, *store.Store, *recordingRecorder) {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	emb := embed.NewStatic(64)
	vecs := semindex.New(64)
	bm25 := NewBM25(st, 1.2, 0.75)
	sem := NewSemantic(st, emb, vecs)
	hyb := NewHybrid(st, bm25, sem, 60, 100)
	rec := &recordingRecorder{}
	eng := NewEngine(st, bm25, sem, hyb, cache.NewMemory(16, cache.DefaultTTL), rec, nil)

	ctx := context.Background()
	require.NoError(t, st.InsertDocument(ctx, &store.Document{
		ID: "d1", URL: "u1", Title: "Go", CleanContent: "golang concurrency patterns",
	}))
	require.NoError(t, st.ReplacePostings(ctx, "d1", map[string][]int{"golang": {0}, "concurr": {1}}, 3))
	return eng, st, rec
}

func TestEngineKeywordSearch(t *testing.T) {
	eng, _, rec := newEngineFixture(t)

	resp, err := eng.Search(context.Background(), "golang", TypeBM25, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, []string{"golang"}, rec.queries)
}

func TestEngineCachesNormalizedQueries(t *testing.T) {
	eng, _, _ := newEngineFixture(t)
	ctx := context.Background()

	first, err := eng.Search(ctx, "golang concurrency", TypeBM25, 1, 10)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// Same terms, different order and case: served from cache.
	second, err := eng.Search(ctx, "CONCURRENCY golang", TypeBM25, 1, 10)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Total, second.Total)
	assert.NotEqual(t, first.QueryID, second.QueryID, "each request gets its own query id")
}

func TestEngineDoesNotCacheEmptyResults(t *testing.T) {
	eng, _, _ := newEngineFixture(t)
	ctx := context.Background()

	first, err := eng.Search(ctx, "nomatch", TypeBM25, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Total)

	second, err := eng.Search(ctx, "nomatch", TypeBM25, 1, 10)
	require.NoError(t, err)
	assert.False(t, second.Cached)
}

func TestEngineStopwordOnlyQuery(t *testing.T) {
	eng, _, _ := newEngineFixture(t)

	resp, err := eng.Search(context.Background(), "the of and", TypeHybrid, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Results)
}

func TestEngineInvalidType(t *testing.T) {
	eng, _, _ := newEngineFixture(t)

	_, err := eng.Search(context.Background(), "golang", "fuzzy", 1, 10)
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeInvalidInput, werrors.CodeOf(err))
}

func TestEngineDefaultsTypeAndBounds(t *testing.T) {
	eng, _, _ := newEngineFixture(t)

	resp, err := eng.Search(context.Background(), "golang", "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, TypeHybrid, resp.Type)
	assert.Equal(t, 1, resp.PageNum)
	assert.Equal(t, 10, resp.PageSize)
}

func TestEngineLogsQueries(t *testing.T) {
	eng, _, _ := newEngineFixture(t)
	ctx := context.Background()

	resp, err := eng.Search(ctx, "golang", TypeBM25, 1, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.QueryID)
	// The query log row exists under the returned id; click recording
	// depends on it.
	_, err = eng.Search(ctx, "golang", TypeBM25, 1, 10)
	require.NoError(t, err)
}
