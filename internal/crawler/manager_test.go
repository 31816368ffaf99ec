package crawler

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/store"
)

// fakeCrawler emits a fixed page list, optionally finishing with an error.
type fakeCrawler struct {
	pages       []Page
	err         error
	validateErr error
	afterFirst  func()
}

var _ Crawler = (*fakeCrawler)(nil)

func (f *fakeCrawler) Source() string                       { return "fake" }
func (f *fakeCrawler) ValidateConfig(json.RawMessage) error { return f.validateErr }

func (f *fakeCrawler) Crawl(ctx context.Context, _ json.RawMessage) (<-chan Page, <-chan error) {
	pages := make(chan Page)
	errc := make(chan error, 1)
	go func() {
		defer close(pages)
		defer close(errc)
		for i, p := range f.pages {
			if !send(ctx, pages, p) {
				return
			}
			if i == 0 && f.afterFirst != nil {
				f.afterFirst()
			}
		}
		if f.err != nil {
			errc <- f.err
		}
	}()
	return pages, errc
}

func richPage(url, title string) Page {
	return Page{
		URL:     url,
		Title:   title,
		RawHTML: "<html><body><p>" + strings.Repeat("substantial crawled content ", 5) + "</p></body></html>",
		Source:  "fake",
		Metadata: map[string]any{
			"origin": "test",
		},
	}
}

func newManagerFixture(t *testing.T, fake *fakeCrawler) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewManager(st, NewRegistry(fake), nil), st
}

func TestSubmitUnknownSource(t *testing.T) {
	m, _ := newManagerFixture(t, &fakeCrawler{})
	_, err := m.Submit(context.Background(), "teletext", nil)
	assert.Equal(t, werrors.ErrCodeBadConfig, werrors.CodeOf(err))
}

func TestSubmitBadConfig(t *testing.T) {
	m, st := newManagerFixture(t, &fakeCrawler{
		validateErr: werrors.BadConfig("missing urls"),
	})
	_, err := m.Submit(context.Background(), "fake", json.RawMessage(`{}`))
	assert.Equal(t, werrors.ErrCodeBadConfig, werrors.CodeOf(err))

	jobs, err := st.ListJobs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs, "rejected submissions leave no job behind")
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	m, st := newManagerFixture(t, &fakeCrawler{})
	job, err := m.Submit(context.Background(), "fake", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, store.JobPending, job.Status)
	assert.Equal(t, "fake", job.Source)

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, got.Config)
}

func TestExecuteCompletesJob(t *testing.T) {
	fake := &fakeCrawler{pages: []Page{
		richPage("https://example.com/one", "One"),
		richPage("https://example.com/one", "One again"), // duplicate URL
		{URL: "https://example.com/thin", Title: "Thin", RawHTML: "<p>tiny</p>", Source: "fake"},
		richPage("https://example.com/two", "Two"),
	}}
	m, st := newManagerFixture(t, fake)
	ctx := context.Background()

	job, err := m.Submit(ctx, "fake", nil)
	require.NoError(t, err)
	require.NoError(t, m.Execute(ctx, job.ID))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, got.Status)
	assert.Equal(t, 4, got.PagesCrawled)
	assert.Equal(t, 2, got.DocumentsAdded)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	doc, err := st.GetDocumentByURL(ctx, "https://example.com/one")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "One", doc.Title, "first page wins the URL")
	assert.Equal(t, "fake", doc.Source)
	assert.Contains(t, doc.CleanContent, "substantial crawled content")
	assert.Greater(t, doc.TokenCount, 0)
	assert.Nil(t, doc.IndexedAt, "crawled documents await the index worker")

	thin, err := st.GetDocumentByURL(ctx, "https://example.com/thin")
	require.NoError(t, err)
	assert.Nil(t, thin, "thin pages are dropped")
}

func TestExecuteFailedCrawl(t *testing.T) {
	fake := &fakeCrawler{
		pages: []Page{richPage("https://example.com/partial", "Partial")},
		err:   werrors.New(werrors.ErrCodeRetryableRemote, "listing endpoint down"),
	}
	m, st := newManagerFixture(t, fake)
	ctx := context.Background()

	job, err := m.Submit(ctx, "fake", nil)
	require.NoError(t, err)
	err = m.Execute(ctx, job.ID)
	assert.Equal(t, werrors.ErrCodeRetryableRemote, werrors.CodeOf(err))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, got.Status)
	assert.Contains(t, got.Error, "listing endpoint down")
	// Work done before the failure is preserved.
	assert.Equal(t, 1, got.PagesCrawled)
	assert.Equal(t, 1, got.DocumentsAdded)
}

func TestExecuteCancelledWhileRunning(t *testing.T) {
	var m *Manager
	var st *store.Store
	var jobID string

	fake := &fakeCrawler{pages: []Page{
		richPage("https://example.com/1", "1"),
		richPage("https://example.com/2", "2"),
		richPage("https://example.com/3", "3"),
		richPage("https://example.com/4", "4"),
		richPage("https://example.com/5", "5"),
	}}
	fake.afterFirst = func() {
		_, err := st.RequestJobCancel(context.Background(), jobID)
		require.NoError(t, err)
	}
	m, st = newManagerFixture(t, fake)
	ctx := context.Background()

	job, err := m.Submit(ctx, "fake", nil)
	require.NoError(t, err)
	jobID = job.ID

	require.NoError(t, m.Execute(ctx, jobID))

	got, err := st.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCancelled, got.Status)
	assert.Less(t, got.PagesCrawled, len(fake.pages), "crawl stopped early")
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	m, st := newManagerFixture(t, &fakeCrawler{pages: []Page{richPage("https://example.com/x", "X")}})
	ctx := context.Background()

	job, err := m.Submit(ctx, "fake", nil)
	require.NoError(t, err)
	cancelledJob, err := st.RequestJobCancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCancelled, cancelledJob.Status)

	// A cancelled job is not runnable; Execute is a no-op, not an error.
	require.NoError(t, m.Execute(ctx, job.ID))
	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCancelled, got.Status)
	assert.Equal(t, 0, got.PagesCrawled)
}

func TestExecuteMissingJob(t *testing.T) {
	m, _ := newManagerFixture(t, &fakeCrawler{})
	err := m.Execute(context.Background(), "no-such-job")
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.CodeOf(err))
}
