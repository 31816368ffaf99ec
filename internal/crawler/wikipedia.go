package crawler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	werrors "github.com/webseek/webseek/internal/errors"
)

const wikipediaAPI = "https://en.wikipedia.org/w/api.php"

// Wikipedia crawls articles through the MediaWiki API: a search call finds
// candidate articles, then a parse call per article fetches rendered HTML and
// categories. No scraping.
type Wikipedia struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	// apiURL is replaceable in tests.
	apiURL string
}

var _ Crawler = (*Wikipedia)(nil)

// NewWikipedia creates the Wikipedia crawler.
func NewWikipedia(opts Options, logger *slog.Logger) *Wikipedia {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wikipedia{
		client:    opts.client(),
		userAgent: opts.UserAgent,
		logger:    logger,
		apiURL:    wikipediaAPI,
	}
}

func (w *Wikipedia) Source() string { return "wikipedia" }

type wikipediaConfig struct {
	Query    string `json:"query"`
	MaxPages int    `json:"maxPages"`
}

func (w *Wikipedia) parseConfig(raw json.RawMessage) (*wikipediaConfig, error) {
	var cfg wikipediaConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Query) == "" {
		return nil, werrors.BadConfig("wikipedia crawler requires a 'query' string")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.MaxPages > 100 {
		cfg.MaxPages = 100
	}
	return &cfg, nil
}

// ValidateConfig checks the config without crawling.
func (w *Wikipedia) ValidateConfig(raw json.RawMessage) error {
	_, err := w.parseConfig(raw)
	return err
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type wikiParseResponse struct {
	Parse struct {
		Text       map[string]string `json:"text"`
		Categories []struct {
			Name string `json:"*"`
		} `json:"categories"`
	} `json:"parse"`
}

// Crawl searches for articles matching the query and emits one page per
// article. A failed search is terminal; a failed article fetch is skipped.
func (w *Wikipedia) Crawl(ctx context.Context, raw json.RawMessage) (<-chan Page, <-chan error) {
	pages := make(chan Page, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(pages)
		defer close(errc)

		cfg, err := w.parseConfig(raw)
		if err != nil {
			errc <- err
			return
		}

		params := url.Values{
			"action":   {"query"},
			"list":     {"search"},
			"srsearch": {cfg.Query},
			"srlimit":  {strconv.Itoa(cfg.MaxPages)},
			"format":   {"json"},
		}
		var search wikiSearchResponse
		if err := getJSON(ctx, w.client, w.userAgent, w.apiURL, params, &search); err != nil {
			errc <- err
			return
		}
		w.logger.Info("wikipedia_search", slog.String("query", cfg.Query),
			slog.Int("results", len(search.Query.Search)))

		for _, result := range search.Query.Search {
			article, err := w.fetchArticle(ctx, result.PageID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("wikipedia_fetch_failed", slog.String("title", result.Title),
					slog.Int("page_id", result.PageID), slog.String("error", err.Error()))
				continue
			}

			categories := make([]string, len(article.Parse.Categories))
			for i, c := range article.Parse.Categories {
				categories[i] = c.Name
			}

			page := Page{
				URL:     "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(result.Title, " ", "_"),
				Title:   result.Title,
				RawHTML: article.Parse.Text["*"],
				Source:  "wikipedia",
				Metadata: map[string]any{
					"page_id":    result.PageID,
					"categories": categories,
					"snippet":    result.Snippet,
				},
			}
			if !send(ctx, pages, page) {
				return
			}
		}
	}()

	return pages, errc
}

func (w *Wikipedia) fetchArticle(ctx context.Context, pageID int) (*wikiParseResponse, error) {
	params := url.Values{
		"action": {"parse"},
		"pageid": {strconv.Itoa(pageID)},
		"prop":   {"text|categories|langlinks"},
		"format": {"json"},
	}
	var out wikiParseResponse
	if err := getJSON(ctx, w.client, w.userAgent, w.apiURL, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
