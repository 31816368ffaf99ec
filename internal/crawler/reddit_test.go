package crawler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedditFixture(t *testing.T, handler http.Handler) *Reddit {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r := NewReddit(Options{Client: srv.Client(), UserAgent: "TestBot/1.0"}, nil)
	r.baseURL = srv.URL
	return r
}

func TestRedditCrawlSubredditListing(t *testing.T) {
	r := newRedditFixture(t, http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/r/golang/hot.json":
			fmt.Fprint(rw, `{"data":{"children":[{"data":{
				"title":"Generics in practice",
				"selftext":"How do you use them?",
				"permalink":"/r/golang/comments/abc/generics_in_practice/",
				"subreddit":"golang","author":"gopher","score":42,
				"num_comments":7,"created_utc":1700000000,"is_self":true}}]}}`)
		case "/r/golang/comments/abc/generics_in_practice.json":
			fmt.Fprint(rw, `[{"data":{"children":[]}},
				{"data":{"children":[
					{"data":{"body":"Use constraints sparingly."}},
					{"data":{"body":""}},
					{"data":{"body":"Type sets are the key idea."}}]}}]`)
		default:
			t.Errorf("unexpected path %q", req.URL.Path)
			http.NotFound(rw, req)
		}
	}))

	pages, err := collect(t, r, `{"subreddit":"golang"}`)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	p := pages[0]
	assert.Equal(t, r.baseURL+"/r/golang/comments/abc/generics_in_practice/", p.URL)
	assert.Equal(t, "Generics in practice", p.Title)
	assert.Contains(t, p.RawHTML, "<h1>Generics in practice</h1>")
	assert.Contains(t, p.RawHTML, "<div>How do you use them?</div>")
	assert.Contains(t, p.RawHTML, "<blockquote>Use constraints sparingly.</blockquote>")
	assert.Contains(t, p.RawHTML, "<blockquote>Type sets are the key idea.</blockquote>")
	assert.Equal(t, "reddit", p.Source)
	assert.Equal(t, "golang", p.Metadata["subreddit"])
	assert.Equal(t, 42, p.Metadata["score"])
	assert.Equal(t, true, p.Metadata["is_self"])
}

func TestRedditCrawlSearch(t *testing.T) {
	var sawPath, sawQuery, sawRestrict string
	r := newRedditFixture(t, http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/r/golang/search.json" {
			sawPath = req.URL.Path
			sawQuery = req.URL.Query().Get("q")
			sawRestrict = req.URL.Query().Get("restrict_sr")
		}
		fmt.Fprint(rw, `{"data":{"children":[]}}`)
	}))

	pages, err := collect(t, r, `{"subreddit":"golang","query":"generics","sort":"top","timeFilter":"year"}`)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, "/r/golang/search.json", sawPath)
	assert.Equal(t, "generics", sawQuery)
	assert.Equal(t, "on", sawRestrict)
}

func TestRedditCommentFetchFailureIsNotFatal(t *testing.T) {
	r := newRedditFixture(t, http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/r/golang/hot.json" {
			fmt.Fprint(rw, `{"data":{"children":[{"data":{
				"title":"No comments here","selftext":"body text",
				"permalink":"/r/golang/comments/xyz/no_comments/"}}]}}`)
			return
		}
		http.Error(rw, "gone", http.StatusNotFound)
	}))

	pages, err := collect(t, r, `{"subreddit":"golang"}`)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.NotContains(t, pages[0].RawHTML, "<blockquote>")
}
