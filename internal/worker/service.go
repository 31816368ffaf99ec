package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webseek/webseek/internal/crawler"
	"github.com/webseek/webseek/internal/index"
)

// Retry policies for the two background task families.
const (
	crawlMaxAttempts = 3
	crawlRetryDelay  = 60 * time.Second
	indexMaxAttempts = 3
	indexRetryDelay  = 30 * time.Second
)

// Invalidator is notified when indexing changes the autocomplete vocabulary.
type Invalidator interface {
	Invalidate()
}

// Service ties the background tasks together: executing crawl jobs, indexing
// the documents they produce, and periodically rebuilding everything.
type Service struct {
	pool    *Pool
	manager *crawler.Manager
	indexer *index.Indexer
	logger  *slog.Logger

	// autocomplete is optional; nil means no trie to invalidate.
	autocomplete Invalidator

	reindexInterval time.Duration

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewService creates the background service. reindexInterval <= 0 disables
// the periodic reindex.
func NewService(pool *Pool, manager *crawler.Manager, indexer *index.Indexer,
	autocomplete Invalidator, reindexInterval time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:            pool,
		manager:         manager,
		indexer:         indexer,
		logger:          logger,
		autocomplete:    autocomplete,
		reindexInterval: reindexInterval,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start launches the pool and the reindex ticker.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.pool.Start(ctx)
	go s.tick(ctx)
}

// Stop shuts down the ticker and the pool, waiting for in-flight tasks.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.doneCh
	}
	s.pool.Stop()
}

func (s *Service) tick(ctx context.Context) {
	defer close(s.doneCh)
	if s.reindexInterval <= 0 {
		<-s.stopCh
		return
	}
	ticker := time.NewTicker(s.reindexInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.EnqueueReindex(); err != nil {
				s.logger.Warn("reindex_enqueue_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// EnqueueCrawl schedules a crawl job for execution. When the crawl completes,
// an index pass over the new documents follows on the pool.
func (s *Service) EnqueueCrawl(jobID string) error {
	return s.pool.Submit(Task{
		Kind:        "crawl",
		MaxAttempts: crawlMaxAttempts,
		RetryDelay:  crawlRetryDelay,
		Run: func(ctx context.Context) error {
			if err := s.manager.Execute(ctx, jobID); err != nil {
				return err
			}
			if err := s.EnqueueIndexNew(); err != nil {
				s.logger.Warn("index_enqueue_failed", slog.String("job_id", jobID),
					slog.String("error", err.Error()))
			}
			return nil
		},
	})
}

// EnqueueIndexNew schedules an index pass over never-indexed documents.
func (s *Service) EnqueueIndexNew() error {
	return s.pool.Submit(Task{
		Kind:        "index_new",
		MaxAttempts: indexMaxAttempts,
		RetryDelay:  indexRetryDelay,
		Run: func(ctx context.Context) error {
			n, err := s.indexer.IndexNew(ctx)
			if n > 0 {
				s.logger.Info("indexed_new_documents", slog.Int("count", n))
				s.invalidate()
			}
			return err
		},
	})
}

// EnqueueReindex schedules a full rebuild of both indexes and the
// autocomplete vocabulary.
func (s *Service) EnqueueReindex() error {
	return s.pool.Submit(Task{
		Kind:        "reindex",
		MaxAttempts: indexMaxAttempts,
		RetryDelay:  indexRetryDelay,
		Run: func(ctx context.Context) error {
			n, err := s.indexer.ReindexAll(ctx)
			s.logger.Info("reindex_done", slog.Int("documents", n))
			s.invalidate()
			return err
		},
	})
}

func (s *Service) invalidate() {
	if s.autocomplete != nil {
		s.autocomplete.Invalidate()
	}
}
