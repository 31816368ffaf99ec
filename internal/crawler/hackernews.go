package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

const (
	hnFirebaseAPI = "https://hacker-news.firebaseio.com/v0"
	hnAlgoliaAPI  = "https://hn.algolia.com/api/v1"

	// hnPageTimeout bounds the fetch of a story's external link.
	hnPageTimeout = 15 * time.Second
	// hnItemDelay is the light pause between Firebase item fetches.
	hnItemDelay = 100 * time.Millisecond
)

// HackerNews crawls stories two ways: keyword search through the Algolia HN
// API, or top/new/best listings through the Firebase API. For stories with an
// external link the linked page's HTML is fetched and appended to the
// synthesized page.
type HackerNews struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	logger    *slog.Logger

	firebaseURL string
	algoliaURL  string
}

var _ Crawler = (*HackerNews)(nil)

// NewHackerNews creates the Hacker News crawler.
func NewHackerNews(opts Options, logger *slog.Logger) *HackerNews {
	if logger == nil {
		logger = slog.Default()
	}
	return &HackerNews{
		client:      opts.client(),
		userAgent:   opts.UserAgent,
		delay:       opts.Delay,
		logger:      logger,
		firebaseURL: hnFirebaseAPI,
		algoliaURL:  hnAlgoliaAPI,
	}
}

func (h *HackerNews) Source() string { return "hackernews" }

type hackerNewsConfig struct {
	Query    string `json:"query"`
	ListType string `json:"listType"`
	MaxPages int    `json:"maxPages"`
}

func (h *HackerNews) parseConfig(raw json.RawMessage) (*hackerNewsConfig, error) {
	var cfg hackerNewsConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.ListType == "" {
		cfg.ListType = "top"
	}
	switch cfg.ListType {
	case "top", "new", "best":
	default:
		return nil, werrors.BadConfig("hackernews listType must be one of top, new, best")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 30
	}
	if cfg.MaxPages > 100 {
		cfg.MaxPages = 100
	}
	return &cfg, nil
}

// ValidateConfig checks the config without crawling.
func (h *HackerNews) ValidateConfig(raw json.RawMessage) error {
	_, err := h.parseConfig(raw)
	return err
}

// hnStory normalizes the two APIs' story shapes: Algolia uses objectID,
// story_text, points, author, created_at_i; Firebase uses id, text, score,
// by, time.
type hnStory struct {
	ID          string
	Title       string
	URL         string
	Text        string
	Points      int
	Author      string
	NumComments int
	CreatedAt   int64
}

type algoliaSearchResponse struct {
	Hits []struct {
		ObjectID    string `json:"objectID"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		StoryText   string `json:"story_text"`
		Points      int    `json:"points"`
		Author      string `json:"author"`
		NumComments int    `json:"num_comments"`
		CreatedAtI  int64  `json:"created_at_i"`
	} `json:"hits"`
}

type firebaseItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Descendants int    `json:"descendants"`
	Time        int64  `json:"time"`
}

// Crawl emits one page per story. The story listing fetch is terminal on
// failure; fetching a story's external link is best effort.
func (h *HackerNews) Crawl(ctx context.Context, raw json.RawMessage) (<-chan Page, <-chan error) {
	pages := make(chan Page, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(pages)
		defer close(errc)

		cfg, err := h.parseConfig(raw)
		if err != nil {
			errc <- err
			return
		}

		var stories []hnStory
		if cfg.Query != "" {
			stories, err = h.searchStories(ctx, cfg.Query, cfg.MaxPages)
		} else {
			stories, err = h.listStories(ctx, cfg.ListType, cfg.MaxPages)
		}
		if err != nil {
			errc <- err
			return
		}
		h.logger.Info("hackernews_listing", slog.Int("stories", len(stories)))

		for _, story := range stories {
			hnURL := "https://news.ycombinator.com/item?id=" + story.ID

			var html strings.Builder
			fmt.Fprintf(&html, "<h1>%s</h1>", story.Title)
			if story.Text != "" {
				fmt.Fprintf(&html, "\n<div>%s</div>", story.Text)
			}
			if story.URL != "" {
				if body := h.fetchLinkedPage(ctx, story.URL); body != "" {
					html.WriteString("\n")
					html.WriteString(body)
				}
			}

			docURL := story.URL
			if docURL == "" {
				docURL = hnURL
			}
			page := Page{
				URL:     docURL,
				Title:   story.Title,
				RawHTML: html.String(),
				Source:  "hackernews",
				Metadata: map[string]any{
					"hn_id":        story.ID,
					"hn_url":       hnURL,
					"points":       story.Points,
					"author":       story.Author,
					"num_comments": story.NumComments,
					"created_at":   story.CreatedAt,
				},
			}
			if !send(ctx, pages, page) {
				return
			}
			if !pause(ctx, h.delay) {
				return
			}
		}
	}()

	return pages, errc
}

func (h *HackerNews) searchStories(ctx context.Context, query string, limit int) ([]hnStory, error) {
	params := url.Values{
		"query":       {query},
		"tags":        {"story"},
		"hitsPerPage": {strconv.Itoa(limit)},
	}
	var resp algoliaSearchResponse
	if err := getJSON(ctx, h.client, h.userAgent, h.algoliaURL+"/search", params, &resp); err != nil {
		return nil, err
	}
	stories := make([]hnStory, len(resp.Hits))
	for i, hit := range resp.Hits {
		stories[i] = hnStory{
			ID:          hit.ObjectID,
			Title:       hit.Title,
			URL:         hit.URL,
			Text:        hit.StoryText,
			Points:      hit.Points,
			Author:      hit.Author,
			NumComments: hit.NumComments,
			CreatedAt:   hit.CreatedAtI,
		}
	}
	return stories, nil
}

func (h *HackerNews) listStories(ctx context.Context, listType string, limit int) ([]hnStory, error) {
	var ids []int64
	endpoint := fmt.Sprintf("%s/%sstories.json", h.firebaseURL, listType)
	if err := getJSON(ctx, h.client, h.userAgent, endpoint, nil, &ids); err != nil {
		return nil, err
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	var stories []hnStory
	for _, id := range ids {
		var item firebaseItem
		itemURL := fmt.Sprintf("%s/item/%d.json", h.firebaseURL, id)
		if err := getJSON(ctx, h.client, h.userAgent, itemURL, nil, &item); err != nil {
			if ctx.Err() != nil {
				return stories, nil
			}
			h.logger.Warn("hackernews_item_failed", slog.Int64("id", id),
				slog.String("error", err.Error()))
			continue
		}
		if item.Type == "story" {
			stories = append(stories, hnStory{
				ID:          strconv.FormatInt(item.ID, 10),
				Title:       item.Title,
				URL:         item.URL,
				Text:        item.Text,
				Points:      item.Score,
				Author:      item.By,
				NumComments: item.Descendants,
				CreatedAt:   item.Time,
			})
		}
		if !pause(ctx, hnItemDelay) {
			return stories, nil
		}
	}
	return stories, nil
}

// fetchLinkedPage fetches an external story link, returning its HTML or ""
// when the page is unavailable or not HTML.
func (h *HackerNews) fetchLinkedPage(ctx context.Context, pageURL string) string {
	ctx, cancel := context.WithTimeout(ctx, hnPageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", h.userAgent)
	resp, err := h.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK ||
		!strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return ""
	}
	return string(body)
}
