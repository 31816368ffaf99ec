package crawler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	werrors "github.com/webseek/webseek/internal/errors"
)

// maxLinksPerPage caps link extraction so one hub page cannot explode the
// frontier.
const maxLinksPerPage = 50

// Generic crawls arbitrary sites breadth-first from seed URLs, staying on the
// seed's domain, honoring robots.txt, and pausing between fetches.
type Generic struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	maxDepth  int
	logger    *slog.Logger
	robots    *robotsCache
}

var _ Crawler = (*Generic)(nil)

// NewGeneric creates the generic site crawler.
func NewGeneric(opts Options, logger *slog.Logger) *Generic {
	if logger == nil {
		logger = slog.Default()
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	client := opts.client()
	return &Generic{
		client:    client,
		userAgent: opts.UserAgent,
		delay:     opts.Delay,
		maxDepth:  maxDepth,
		logger:    logger,
		robots:    newRobotsCache(client, opts.UserAgent, logger),
	}
}

func (g *Generic) Source() string { return "custom" }

type genericConfig struct {
	URLs     []string `json:"urls"`
	MaxPages int      `json:"maxPages"`
	MaxDepth int      `json:"maxDepth"`
}

func (g *Generic) parseConfig(raw json.RawMessage) (*genericConfig, error) {
	var cfg genericConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.URLs) == 0 {
		return nil, werrors.BadConfig("generic crawler requires 'urls' (list of seed URLs)")
	}
	for _, seed := range cfg.URLs {
		u, err := url.Parse(seed)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, werrors.BadConfig("invalid seed URL: " + seed)
		}
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.MaxPages > 500 {
		cfg.MaxPages = 500
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 2
	}
	if cfg.MaxDepth > g.maxDepth {
		cfg.MaxDepth = g.maxDepth
	}
	return &cfg, nil
}

// ValidateConfig checks the config without crawling.
func (g *Generic) ValidateConfig(raw json.RawMessage) error {
	_, err := g.parseConfig(raw)
	return err
}

type frontierEntry struct {
	url   string
	depth int
}

// Crawl walks the frontier breadth-first. Fetch failures and non-HTML
// responses are skipped; the crawl itself only fails on bad config.
func (g *Generic) Crawl(ctx context.Context, raw json.RawMessage) (<-chan Page, <-chan error) {
	pages := make(chan Page, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(pages)
		defer close(errc)

		cfg, err := g.parseConfig(raw)
		if err != nil {
			errc <- err
			return
		}

		visited := make(map[string]bool)
		queue := make([]frontierEntry, 0, len(cfg.URLs))
		for _, seed := range cfg.URLs {
			queue = append(queue, frontierEntry{url: normalizeURL(seed), depth: 0})
		}

		yielded := 0
		for len(queue) > 0 && yielded < cfg.MaxPages {
			if ctx.Err() != nil {
				return
			}
			entry := queue[0]
			queue = queue[1:]

			if visited[entry.url] {
				continue
			}
			visited[entry.url] = true

			if !g.robots.allowed(ctx, entry.url) {
				g.logger.Info("robots_blocked", slog.String("url", entry.url))
				continue
			}

			html, err := g.fetchHTML(ctx, entry.url)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				g.logger.Warn("generic_fetch_failed", slog.String("url", entry.url),
					slog.String("error", err.Error()))
				continue
			}
			if html == "" {
				continue
			}

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
			if err != nil {
				g.logger.Warn("generic_parse_failed", slog.String("url", entry.url),
					slog.String("error", err.Error()))
				continue
			}

			page := Page{
				URL:     entry.url,
				Title:   strings.TrimSpace(doc.Find("title").First().Text()),
				RawHTML: html,
				Source:  "custom",
				Metadata: map[string]any{
					"depth":          entry.depth,
					"content_length": len(html),
				},
			}
			if !send(ctx, pages, page) {
				return
			}
			yielded++

			if entry.depth < cfg.MaxDepth {
				for _, link := range extractLinks(doc, entry.url) {
					if !visited[link] {
						queue = append(queue, frontierEntry{url: link, depth: entry.depth + 1})
					}
				}
			}

			if !pause(ctx, g.delay) {
				return
			}
		}
		g.logger.Info("generic_crawl_done", slog.Int("visited", len(visited)),
			slog.Int("yielded", yielded))
	}()

	return pages, errc
}

// fetchHTML returns the page body, or "" for non-HTML or non-200 responses.
func (g *Generic) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// normalizeURL strips the fragment and query string so each page has one
// canonical frontier key.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// extractLinks returns up to maxLinksPerPage same-domain links, normalized
// and deduplicated, in document order.
func extractLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		resolved, err := base.Parse(href)
		if err != nil {
			return true
		}
		if resolved.Host != base.Host || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return true
		}
		normalized := resolved.Scheme + "://" + resolved.Host + resolved.Path
		if !seen[normalized] {
			seen[normalized] = true
			links = append(links, normalized)
		}
		return len(links) < maxLinksPerPage
	})
	return links
}
