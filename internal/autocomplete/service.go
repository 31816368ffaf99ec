// Package autocomplete serves query completions from an in-memory prefix
// trie backed by the persisted term vocabulary.
package autocomplete

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/webseek/webseek/internal/store"
)

// maxTrieTerms bounds how much of the vocabulary is loaded into the trie;
// the most frequent terms win.
const maxTrieTerms = 50000

// Service answers prefix queries and learns from served searches.
type Service struct {
	store  *store.Store
	logger *slog.Logger

	mu       sync.RWMutex
	trie     *trie
	stale    bool
	building bool
}

// New creates the service. The trie builds lazily on first use.
func New(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger, stale: true}
}

// Suggest returns up to limit completions for prefix, most frequent first.
// While the trie is stale or rebuilding, suggestions come straight from the
// store so requests never wait on a rebuild.
func (s *Service) Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []Suggestion{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	s.mu.RLock()
	current := s.trie
	needsBuild := s.stale && !s.building
	s.mu.RUnlock()

	if needsBuild {
		s.triggerRebuild()
	}

	if current != nil {
		if results := current.search(prefix, limit); len(results) > 0 {
			return results, nil
		}
	}

	// Trie missing, rebuilding, or has no match for this prefix yet.
	terms, err := s.store.TermsWithPrefix(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, len(terms))
	for i, tf := range terms {
		out[i] = Suggestion{Term: tf.Term, Frequency: tf.Frequency}
	}
	return out, nil
}

// RecordQuery learns a served search query as a completion candidate and
// marks the trie stale. Queries under 2 characters are ignored.
func (s *Service) RecordQuery(ctx context.Context, query string) error {
	term := strings.ToLower(strings.TrimSpace(query))
	if len(term) < 2 || len(term) > 255 {
		return nil
	}
	if err := s.store.RecordQueryTerm(ctx, term); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate marks the trie stale so the next Suggest triggers a rebuild.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// triggerRebuild starts one background rebuild; concurrent calls while a
// build is running are no-ops.
func (s *Service) triggerRebuild() {
	s.mu.Lock()
	if s.building {
		s.mu.Unlock()
		return
	}
	s.building = true
	s.stale = false
	s.mu.Unlock()

	go func() {
		t, err := s.build(context.Background())

		s.mu.Lock()
		s.building = false
		if err != nil {
			// Keep serving the old trie; retry on next Suggest.
			s.stale = true
			s.mu.Unlock()
			s.logger.Warn("autocomplete_rebuild_failed", slog.String("error", err.Error()))
			return
		}
		s.trie = t
		s.mu.Unlock()
		s.logger.Info("autocomplete_trie_built", slog.Int("terms", t.size))
	}()
}

func (s *Service) build(ctx context.Context) (*trie, error) {
	terms, err := s.store.TopTerms(ctx, maxTrieTerms)
	if err != nil {
		return nil, err
	}
	t := newTrie()
	for _, tf := range terms {
		t.insert(tf.Term, tf.Frequency)
	}
	return t, nil
}

// WarmUp builds the trie synchronously, typically at startup.
func (s *Service) WarmUp(ctx context.Context) error {
	t, err := s.build(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.trie = t
	s.stale = false
	s.mu.Unlock()
	return nil
}
