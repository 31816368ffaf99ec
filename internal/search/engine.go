package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/webseek/webseek/internal/cache"
	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/store"
)

// TermRecorder feeds served queries into the autocomplete vocabulary.
type TermRecorder interface {
	RecordQuery(ctx context.Context, query string) error
}

// Response is a served search with its analytics handle.
type Response struct {
	QueryID string `json:"queryId"`
	Query   string `json:"query"`
	Type    string `json:"type"`
	Page
	Cached bool  `json:"cached"`
	TookMS int64 `json:"latencyMs"`
}

// Engine fronts the three searchers with result caching, query logging, and
// autocomplete feedback.
type Engine struct {
	store    *store.Store
	bm25     *BM25Searcher
	semantic *SemanticSearcher
	hybrid   *HybridSearcher
	cache    cache.ResultCache
	recorder TermRecorder
	logger   *slog.Logger
}

// NewEngine wires the search front door. recorder may be nil.
func NewEngine(st *store.Store, bm25 *BM25Searcher, sem *SemanticSearcher, hyb *HybridSearcher,
	rc cache.ResultCache, recorder TermRecorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store: st, bm25: bm25, semantic: sem, hybrid: hyb,
		cache: rc, recorder: recorder, logger: logger,
	}
}

// Search serves one query. Identical queries (same terms, any order or case)
// within the cache TTL share the cached page; every request gets its own
// query id for click attribution.
func (e *Engine) Search(ctx context.Context, rawQuery, searchType string, page, size int) (*Response, error) {
	switch searchType {
	case TypeBM25, TypeSemantic, TypeHybrid:
	case "":
		searchType = TypeHybrid
	default:
		return nil, werrors.Newf(werrors.ErrCodeInvalidInput, "unknown search type %q", searchType)
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}

	start := time.Now()
	resp := &Response{
		QueryID: uuid.NewString(),
		Query:   rawQuery,
		Type:    searchType,
	}

	q := ProcessQuery(rawQuery)
	if q.Empty() {
		resp.Page = Page{Results: []Result{}, PageNum: page, PageSize: size}
		resp.TookMS = time.Since(start).Milliseconds()
		e.finish(ctx, resp)
		return resp, nil
	}

	key := cache.Key(searchType, q.CacheKey, page, size)
	if payload, ok, err := e.cache.Get(ctx, key); err != nil {
		e.logger.Warn("result_cache_get_failed", slog.String("error", err.Error()))
	} else if ok {
		var cached Page
		if err := json.Unmarshal(payload, &cached); err == nil {
			resp.Page = cached
			resp.Cached = true
			resp.TookMS = time.Since(start).Milliseconds()
			e.finish(ctx, resp)
			return resp, nil
		}
	}

	var (
		result *Page
		err    error
	)
	switch searchType {
	case TypeBM25:
		result, err = e.bm25.Search(ctx, q, page, size)
	case TypeSemantic:
		result, err = e.semantic.Search(ctx, q.Raw, page, size)
	case TypeHybrid:
		result, err = e.hybrid.Search(ctx, q, page, size)
	}
	if err != nil {
		return nil, err
	}

	if result.Total > 0 {
		if payload, merr := json.Marshal(result); merr == nil {
			if cerr := e.cache.Set(ctx, key, payload); cerr != nil {
				e.logger.Warn("result_cache_set_failed", slog.String("error", cerr.Error()))
			}
		}
	}

	resp.Page = *result
	resp.TookMS = time.Since(start).Milliseconds()
	e.finish(ctx, resp)
	return resp, nil
}

// finish records analytics and autocomplete feedback. Never fails a search.
func (e *Engine) finish(ctx context.Context, resp *Response) {
	if err := e.store.InsertQueryLog(ctx, &store.QueryLog{
		ID:          resp.QueryID,
		Query:       resp.Query,
		SearchType:  resp.Type,
		ResultCount: resp.Total,
		LatencyMS:   resp.TookMS,
	}); err != nil {
		e.logger.Warn("query_log_failed", slog.String("error", err.Error()))
	}
	if e.recorder != nil {
		if err := e.recorder.RecordQuery(ctx, resp.Query); err != nil {
			e.logger.Warn("autocomplete_record_failed", slog.String("error", err.Error()))
		}
	}
}
