package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webseek/webseek/internal/autocomplete"
	"github.com/webseek/webseek/internal/cache"
	"github.com/webseek/webseek/internal/config"
	"github.com/webseek/webseek/internal/crawler"
	"github.com/webseek/webseek/internal/embed"
	"github.com/webseek/webseek/internal/index"
	"github.com/webseek/webseek/internal/llm"
	"github.com/webseek/webseek/internal/rag"
	"github.com/webseek/webseek/internal/search"
	"github.com/webseek/webseek/internal/semindex"
	"github.com/webseek/webseek/internal/server"
	"github.com/webseek/webseek/internal/store"
	"github.com/webseek/webseek/internal/worker"
)

// app holds the wired platform components. Commands build one, use the parts
// they need, and Close it on the way out.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	vectors  *semindex.Index
	indexer  *index.Indexer
	engine   *search.Engine
	suggest  *autocomplete.Service
	rag      *rag.Controller
	manager  *crawler.Manager
	workers  *worker.Service
	server   *server.Server
}

// buildApp wires the full stack from configuration. With offline set, the
// Ollama embedding endpoint is replaced by deterministic static embeddings so
// the platform runs without any model server.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, offline bool) (*app, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var embedder embed.Embedder
	if offline {
		embedder = embed.NewStatic(cfg.Embeddings.Dimensions)
	} else {
		embedder = embed.NewOllama(cfg.Embeddings.BaseURL, cfg.Embeddings.Model, cfg.Embeddings.Dimensions)
	}

	vectors := semindex.New(cfg.Embeddings.Dimensions)
	chunks, err := st.AllChunks(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	if err := vectors.Load(chunks); err != nil {
		st.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	logger.Info("vector_index_loaded", slog.Int("chunks", vectors.Len()))

	indexer := index.New(st, embedder, vectors, cfg.Embeddings.ChunkSize, cfg.Embeddings.ChunkOverlap, logger)

	bm25 := search.NewBM25(st, cfg.Search.BM25K1, cfg.Search.BM25B)
	semantic := search.NewSemantic(st, embedder, vectors)
	hybrid := search.NewHybrid(st, bm25, semantic, cfg.Search.RRFK, cfg.Search.MaxResults)

	var results cache.ResultCache
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedis(cfg.Redis.URL, cfg.Search.CacheTTL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		results = rc
		logger.Info("result_cache", slog.String("backend", "redis"))
	} else {
		results = cache.NewMemory(1024, cfg.Search.CacheTTL)
		logger.Info("result_cache", slog.String("backend", "memory"))
	}

	suggest := autocomplete.New(st, logger)
	if err := suggest.WarmUp(ctx); err != nil {
		logger.Warn("autocomplete_warmup_failed", slog.String("error", err.Error()))
	}

	engine := search.NewEngine(st, bm25, semantic, hybrid, results, suggest, logger)

	retriever := rag.NewRetriever(st, bm25, semantic)
	generator := rag.NewGenerator(llm.New(cfg.LLM.BaseURL, cfg.LLM.Model), cfg.LLM.Model, logger)
	controller := rag.NewController(retriever, generator, logger)

	opts := crawler.Options{
		UserAgent: cfg.Crawl.UserAgent,
		Delay:     time.Duration(cfg.Crawl.DelaySeconds * float64(time.Second)),
		MaxDepth:  cfg.Crawl.MaxDepth,
	}
	registry := crawler.NewRegistry(
		crawler.NewWikipedia(opts, logger),
		crawler.NewReddit(opts, logger),
		crawler.NewHackerNews(opts, logger),
		crawler.NewGeneric(opts, logger),
	)
	manager := crawler.NewManager(st, registry, logger)

	pool := worker.NewPool(cfg.Worker.Count, 0, logger)
	workers := worker.NewService(pool, manager, indexer, suggest, cfg.Worker.ReindexInterval, logger)

	srv := server.New(engine, controller, suggest, manager, workers, st, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		vectors: vectors,
		indexer: indexer,
		engine:  engine,
		suggest: suggest,
		rag:     controller,
		manager: manager,
		workers: workers,
		server:  srv,
	}, nil
}

// Close releases the app's resources. Safe to call once.
func (a *app) Close() {
	a.workers.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store_close_failed", slog.String("error", err.Error()))
	}
}
