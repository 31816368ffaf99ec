package crawler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/webseek/webseek/internal/errors"
)

func newWikipediaFixture(t *testing.T, handler http.Handler) *Wikipedia {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	w := NewWikipedia(Options{Client: srv.Client(), UserAgent: "TestBot/1.0"}, nil)
	w.apiURL = srv.URL
	return w
}

func TestWikipediaCrawl(t *testing.T) {
	w := newWikipediaFixture(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "query":
			assert.Equal(t, "golang", r.URL.Query().Get("srsearch"))
			fmt.Fprint(rw, `{"query":{"search":[
				{"pageid":7,"title":"Go (programming language)","snippet":"a compiled language"},
				{"pageid":8,"title":"Gopher","snippet":"a rodent"}]}}`)
		case "parse":
			id := r.URL.Query().Get("pageid")
			if id == "8" {
				http.Error(rw, "boom", http.StatusInternalServerError)
				return
			}
			fmt.Fprintf(rw, `{"parse":{"text":{"*":"<p>article %s body</p>"},"categories":[{"*":"Programming languages"}]}}`, id)
		default:
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
	}))

	pages, err := collect(t, w, `{"query":"golang","maxPages":10}`)
	require.NoError(t, err)
	// The failed article fetch is skipped, not fatal.
	require.Len(t, pages, 1)

	p := pages[0]
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_(programming_language)", p.URL)
	assert.Equal(t, "Go (programming language)", p.Title)
	assert.Equal(t, "<p>article 7 body</p>", p.RawHTML)
	assert.Equal(t, "wikipedia", p.Source)
	assert.Equal(t, 7, p.Metadata["page_id"])
	assert.Equal(t, []string{"Programming languages"}, p.Metadata["categories"])
	assert.Equal(t, "a compiled language", p.Metadata["snippet"])
}

func TestWikipediaSearchFailureIsTerminal(t *testing.T) {
	w := newWikipediaFixture(t, http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		http.Error(rw, "unavailable", http.StatusServiceUnavailable)
	}))

	pages, err := collect(t, w, `{"query":"golang"}`)
	assert.Empty(t, pages)
	assert.Equal(t, werrors.ErrCodeRetryableRemote, werrors.CodeOf(err))
}

func TestWikipediaBadConfigIsTerminal(t *testing.T) {
	w := NewWikipedia(Options{}, nil)
	pages, err := collect(t, w, `{}`)
	assert.Empty(t, pages)
	assert.Equal(t, werrors.ErrCodeBadConfig, werrors.CodeOf(err))
}
