package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/webseek/webseek/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &Document{
		ID:           "doc-1",
		URL:          "https://example.com/a",
		Title:        "Example",
		Content:      "<p>hello</p>",
		CleanContent: "hello",
		Source:       "generic",
		Metadata:     map[string]any{"depth": float64(1)},
	}
	require.NoError(t, s.InsertDocument(ctx, doc))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Example", got.Title)
	assert.Equal(t, float64(1), got.Metadata["depth"])
	assert.Nil(t, got.IndexedAt)

	byURL, err := s.GetDocumentByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, byURL)
	assert.Equal(t, "doc-1", byURL.ID)

	missing, err := s.GetDocumentByURL(ctx, "https://example.com/none")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))
	_, err = s.GetDocument(ctx, "doc-1")
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.CodeOf(err))
}

func TestInsertDocumentDuplicateURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocument(ctx, &Document{ID: "a", URL: "https://example.com"}))
	err := s.InsertDocument(ctx, &Document{ID: "b", URL: "https://example.com"})
	assert.Equal(t, werrors.ErrCodeConflict, werrors.CodeOf(err))
}

func TestReplacePostingsUpdatesStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocument(ctx, &Document{ID: "a", URL: "u1"}))
	require.NoError(t, s.InsertDocument(ctx, &Document{ID: "b", URL: "u2"}))

	require.NoError(t, s.ReplacePostings(ctx, "a", map[string][]int{
		"search": {0, 3}, "engin": {1},
	}, 4))
	require.NoError(t, s.ReplacePostings(ctx, "b", map[string][]int{
		"search": {0},
	}, 2))

	cs, err := s.GetCollectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cs.TotalDocuments)
	assert.InDelta(t, 3.0, cs.AvgDocLength, 1e-9)

	postings, err := s.PostingsForTerms(ctx, []string{"search", "engin", "missing"})
	require.NoError(t, err)
	assert.Len(t, postings["search"], 2)
	assert.Len(t, postings["engin"], 1)
	assert.NotContains(t, postings, "missing")

	// Re-indexing replaces, not accumulates.
	require.NoError(t, s.ReplacePostings(ctx, "a", map[string][]int{"rank": {0}}, 1))
	postings, err = s.PostingsForTerms(ctx, []string{"search", "rank"})
	require.NoError(t, err)
	assert.Len(t, postings["search"], 1)
	assert.Equal(t, "b", postings["search"][0].DocumentID)
	assert.Len(t, postings["rank"], 1)

	lengths, err := s.DocumentLengths(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, lengths)
}

func TestReplacePostingsUnknownDocument(t *testing.T) {
	s := newTestStore(t)
	err := s.ReplacePostings(context.Background(), "ghost", map[string][]int{"x": {0}}, 1)
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.CodeOf(err))
}

func TestUnindexedListing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocument(ctx, &Document{ID: "a", URL: "u1"}))
	require.NoError(t, s.InsertDocument(ctx, &Document{ID: "b", URL: "u2"}))
	require.NoError(t, s.ReplacePostings(ctx, "a", map[string][]int{"x": {0}}, 1))

	ids, err := s.ListUnindexedIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestChunkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDocument(ctx, &Document{ID: "a", URL: "u1"}))
	chunks := []Chunk{
		{Index: 0, Text: "first chunk", Embedding: []float32{0.1, -0.5, 1}},
		{Index: 1, Text: "second chunk", Embedding: []float32{0.9, 0.2, -1}},
	}
	require.NoError(t, s.ReplaceChunks(ctx, "a", chunks))

	got, err := s.GetChunk(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, "second chunk", got.Text)
	assert.Equal(t, []float32{0.9, 0.2, -1}, got.Embedding)

	all, err := s.AllChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Replacement clears the old set.
	require.NoError(t, s.ReplaceChunks(ctx, "a", chunks[:1]))
	n, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAutocompleteTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordQueryTerm(ctx, "golang"))
	require.NoError(t, s.RecordQueryTerm(ctx, "golang"))
	require.NoError(t, s.RecordQueryTerm(ctx, "gopher"))
	require.NoError(t, s.InsertTitleTerm(ctx, "graph"))
	// Title seeding never overwrites learned frequencies.
	require.NoError(t, s.InsertTitleTerm(ctx, "golang"))

	top, err := s.TopTerms(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, TermFrequency{Term: "graph", Frequency: 5}, top[0])
	assert.Equal(t, TermFrequency{Term: "golang", Frequency: 2}, top[1])

	pre, err := s.TermsWithPrefix(ctx, "go", 10)
	require.NoError(t, err)
	require.Len(t, pre, 2)
	assert.Equal(t, "golang", pre[0].Term)
}

func TestJobStateMachine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &CrawlJob{ID: "j1", Source: "wikipedia", Config: `{"query":"go"}`}
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, JobPending, got.Status)

	require.NoError(t, s.MarkJobRunning(ctx, "j1"))
	// Running twice is a conflict, not a silent overwrite.
	err = s.MarkJobRunning(ctx, "j1")
	assert.Equal(t, werrors.ErrCodeConflict, werrors.CodeOf(err))

	require.NoError(t, s.UpdateJobProgress(ctx, "j1", 10, 7))
	require.NoError(t, s.MarkJobCompleted(ctx, "j1"))

	got, err = s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, 10, got.PagesCrawled)
	assert.Equal(t, 7, got.DocumentsAdded)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	// A finished job cannot be cancelled.
	_, err = s.RequestJobCancel(ctx, "j1")
	assert.Equal(t, werrors.ErrCodeConflict, werrors.CodeOf(err))
}

func TestJobCancellation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, &CrawlJob{ID: "p", Source: "reddit"}))
	job, err := s.RequestJobCancel(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, job.Status)

	require.NoError(t, s.CreateJob(ctx, &CrawlJob{ID: "r", Source: "reddit"}))
	require.NoError(t, s.MarkJobRunning(ctx, "r"))
	job, err = s.RequestJobCancel(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, JobRunning, job.Status)
	assert.True(t, job.CancelRequested)

	flagged, err := s.JobCancelRequested(ctx, "r")
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestAnalytics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertQueryLog(ctx, &QueryLog{
		ID: "q1", Query: "bm25 ranking", SearchType: "hybrid", ResultCount: 4, LatencyMS: 12,
	}))
	require.NoError(t, s.InsertClickEvent(ctx, &ClickEvent{
		ID: "c1", QueryID: "q1", DocumentID: "d1", Position: 2,
	}))

	require.NoError(t, s.InsertDocument(ctx, &Document{ID: "d1", URL: "u1"}))
	require.NoError(t, s.ReplacePostings(ctx, "d1", map[string][]int{"bm25": {0}}, 1))
	require.NoError(t, s.CreateJob(ctx, &CrawlJob{ID: "j1", Source: "hackernews"}))

	st, err := s.GetIndexStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalDocuments)
	assert.Equal(t, 1, st.IndexedDocuments)
	assert.Equal(t, 1, st.TotalTerms)
	assert.Equal(t, 1, st.PendingJobs)
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	_, err := s.GetDocument(context.Background(), "x")
	assert.Equal(t, werrors.ErrCodePersistence, werrors.CodeOf(err))
}
