// Package crawler turns external sources (Wikipedia, Reddit, Hacker News,
// arbitrary sites) into a stream of pages for the ingest pipeline. Each
// crawler produces pages on a bounded channel so the consumer controls the
// rate.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

// Page is one crawled page before cleaning and persistence.
type Page struct {
	URL      string
	Title    string
	RawHTML  string
	Source   string
	Metadata map[string]any
}

// Crawler is a page producer for one source.
//
// Crawl returns a page channel and an error channel. Both close when the
// crawl finishes; the error channel carries at most one terminal error.
// Per-page failures are logged and skipped, not reported. The producer stops
// promptly when ctx is cancelled.
type Crawler interface {
	Source() string
	// ValidateConfig checks a raw JSON config, rejecting unknown fields and
	// missing required ones with ErrCodeBadConfig.
	ValidateConfig(raw json.RawMessage) error
	Crawl(ctx context.Context, raw json.RawMessage) (<-chan Page, <-chan error)
}

// Registry maps source names to crawlers.
type Registry struct {
	crawlers map[string]Crawler
}

// NewRegistry builds a registry from the given crawlers.
func NewRegistry(crawlers ...Crawler) *Registry {
	r := &Registry{crawlers: make(map[string]Crawler, len(crawlers))}
	for _, c := range crawlers {
		r.crawlers[c.Source()] = c
	}
	return r
}

// Get returns the crawler for source, or ErrCodeBadConfig for unknown sources.
func (r *Registry) Get(source string) (Crawler, error) {
	c, ok := r.crawlers[source]
	if !ok {
		return nil, werrors.BadConfig(fmt.Sprintf("unknown crawler source %q (available: %s)",
			source, strings.Join(r.Sources(), ", ")))
	}
	return c, nil
}

// Sources lists registered source names, sorted.
func (r *Registry) Sources() []string {
	out := make([]string, 0, len(r.crawlers))
	for name := range r.crawlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Options carries the shared settings every crawler needs.
type Options struct {
	// Client is used for all outbound requests; nil gets a 30 s timeout client.
	Client *http.Client
	// UserAgent is announced on every request.
	UserAgent string
	// Delay is the polite pause between pages.
	Delay time.Duration
	// MaxDepth caps how deep the generic crawler may follow links.
	MaxDepth int
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// decodeConfig strictly decodes raw into v. Empty config decodes as {}.
func decodeConfig(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return werrors.BadConfig("invalid crawler config: " + err.Error())
	}
	return nil
}

// getJSON fetches a URL with the crawler User-Agent and decodes the JSON
// response body into v.
func getJSON(ctx context.Context, client *http.Client, userAgent, rawURL string, params url.Values, v any) error {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePermanentRemote, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodeRetryableRemote, fmt.Errorf("fetch %s: %w", rawURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		code := werrors.ErrCodePermanentRemote
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			code = werrors.ErrCodeRetryableRemote
		}
		return werrors.Newf(code, "%s returned %d: %s", rawURL, resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return werrors.Wrap(werrors.ErrCodePermanentRemote, fmt.Errorf("decode %s: %w", rawURL, err))
	}
	return nil
}

// send delivers one page unless the context is cancelled first.
func send(ctx context.Context, out chan<- Page, p Page) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

// pause sleeps for d, returning false if the context is cancelled.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
