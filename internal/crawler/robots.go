package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/temoto/robotstxt"
)

const (
	robotsTimeout  = 10 * time.Second
	robotsCacheTTL = time.Hour
	robotsCacheLen = 256
)

// robotsCache answers "may I fetch this URL" per robots.txt, caching one
// parsed policy per host. A missing or unreadable robots.txt allows
// everything; a cached nil entry encodes that.
type robotsCache struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	cache     *lru.LRU[string, *robotstxt.RobotsData]
}

func newRobotsCache(client *http.Client, userAgent string, logger *slog.Logger) *robotsCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		cache:     lru.NewLRU[string, *robotstxt.RobotsData](robotsCacheLen, nil, robotsCacheTTL),
	}
}

func (rc *robotsCache) allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := u.Scheme + "://" + u.Host

	robots, ok := rc.cache.Get(host)
	if !ok {
		robots = rc.fetch(ctx, host)
		rc.cache.Add(host, robots)
	}
	if robots == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return robots.TestAgent(path, rc.userAgent)
}

func (rc *robotsCache) fetch(ctx context.Context, host string) *robotstxt.RobotsData {
	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		rc.logger.Warn("robots_fetch_failed", slog.String("host", host),
			slog.String("error", err.Error()))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		rc.logger.Warn("robots_parse_failed", slog.String("host", host),
			slog.String("error", err.Error()))
		return nil
	}
	return robots
}
