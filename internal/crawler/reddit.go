package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

const redditBase = "https://www.reddit.com"

// Reddit crawls posts through the public JSON endpoints, no OAuth. Each post
// becomes one page synthesized from its title, selftext, and up to five top
// comments.
type Reddit struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	logger    *slog.Logger

	baseURL string
}

var _ Crawler = (*Reddit)(nil)

// NewReddit creates the Reddit crawler.
func NewReddit(opts Options, logger *slog.Logger) *Reddit {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reddit{
		client:    opts.client(),
		userAgent: opts.UserAgent,
		delay:     opts.Delay,
		logger:    logger,
		baseURL:   redditBase,
	}
}

func (r *Reddit) Source() string { return "reddit" }

type redditConfig struct {
	Subreddit  string `json:"subreddit"`
	Query      string `json:"query"`
	MaxPages   int    `json:"maxPages"`
	Sort       string `json:"sort"`
	TimeFilter string `json:"timeFilter"`
}

func (r *Reddit) parseConfig(raw json.RawMessage) (*redditConfig, error) {
	var cfg redditConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Subreddit == "" && cfg.Query == "" {
		return nil, werrors.BadConfig("reddit crawler requires 'subreddit' or 'query'")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 25
	}
	if cfg.MaxPages > 100 {
		cfg.MaxPages = 100
	}
	if cfg.Sort == "" {
		cfg.Sort = "relevance"
	}
	if cfg.TimeFilter == "" {
		cfg.TimeFilter = "all"
	}
	return &cfg, nil
}

// ValidateConfig checks the config without crawling.
func (r *Reddit) ValidateConfig(raw json.RawMessage) error {
	_, err := r.parseConfig(raw)
	return err
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	IsSelf      bool    `json:"is_self"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditCommentListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Body string `json:"body"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Crawl fetches a post listing, then emits one page per post with its top
// comments inlined as blockquotes. A failed listing fetch is terminal; a
// failed comment fetch just leaves the post without comments.
func (r *Reddit) Crawl(ctx context.Context, raw json.RawMessage) (<-chan Page, <-chan error) {
	pages := make(chan Page, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(pages)
		defer close(errc)

		cfg, err := r.parseConfig(raw)
		if err != nil {
			errc <- err
			return
		}

		posts, err := r.fetchPosts(ctx, cfg)
		if err != nil {
			errc <- err
			return
		}
		r.logger.Info("reddit_listing", slog.Int("posts", len(posts)))

		if len(posts) > cfg.MaxPages {
			posts = posts[:cfg.MaxPages]
		}
		for _, post := range posts {
			var html strings.Builder
			fmt.Fprintf(&html, "<h1>%s</h1>", post.Title)
			if post.Selftext != "" {
				fmt.Fprintf(&html, "\n<div>%s</div>", post.Selftext)
			}
			for _, body := range r.fetchComments(ctx, post.Permalink) {
				fmt.Fprintf(&html, "\n<blockquote>%s</blockquote>", body)
			}

			page := Page{
				URL:     r.baseURL + post.Permalink,
				Title:   post.Title,
				RawHTML: html.String(),
				Source:  "reddit",
				Metadata: map[string]any{
					"subreddit":    post.Subreddit,
					"author":       post.Author,
					"score":        post.Score,
					"num_comments": post.NumComments,
					"created_utc":  post.CreatedUTC,
					"is_self":      post.IsSelf,
				},
			}
			if !send(ctx, pages, page) {
				return
			}
			if !pause(ctx, r.delay) {
				return
			}
		}
	}()

	return pages, errc
}

func (r *Reddit) fetchPosts(ctx context.Context, cfg *redditConfig) ([]redditPost, error) {
	var endpoint string
	params := url.Values{"limit": {strconv.Itoa(cfg.MaxPages)}}
	switch {
	case cfg.Query != "" && cfg.Subreddit != "":
		endpoint = fmt.Sprintf("%s/r/%s/search.json", r.baseURL, cfg.Subreddit)
		params.Set("q", cfg.Query)
		params.Set("sort", cfg.Sort)
		params.Set("t", cfg.TimeFilter)
		params.Set("restrict_sr", "on")
	case cfg.Query != "":
		endpoint = r.baseURL + "/search.json"
		params.Set("q", cfg.Query)
		params.Set("sort", cfg.Sort)
		params.Set("t", cfg.TimeFilter)
	default:
		endpoint = fmt.Sprintf("%s/r/%s/hot.json", r.baseURL, cfg.Subreddit)
	}

	var listing redditListing
	if err := getJSON(ctx, r.client, r.userAgent, endpoint, params, &listing); err != nil {
		return nil, err
	}
	posts := make([]redditPost, len(listing.Data.Children))
	for i, child := range listing.Data.Children {
		posts[i] = child.Data
	}
	return posts, nil
}

// fetchComments returns up to five top comment bodies, best effort.
func (r *Reddit) fetchComments(ctx context.Context, permalink string) []string {
	params := url.Values{"limit": {"5"}, "sort": {"best"}}
	// The post endpoint returns [listing-of-post, listing-of-comments].
	var payload []redditCommentListing
	endpoint := strings.TrimSuffix(r.baseURL+permalink, "/") + ".json"
	if err := getJSON(ctx, r.client, r.userAgent, endpoint, params, &payload); err != nil {
		r.logger.Warn("reddit_comments_failed", slog.String("permalink", permalink),
			slog.String("error", err.Error()))
		return nil
	}
	if len(payload) < 2 {
		return nil
	}
	var bodies []string
	for _, child := range payload[1].Data.Children {
		if child.Data.Body == "" {
			continue
		}
		bodies = append(bodies, child.Data.Body)
		if len(bodies) == 5 {
			break
		}
	}
	return bodies
}
