package search

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/webseek/webseek/internal/store"
)

// HybridSearcher fuses keyword and semantic rankings with Reciprocal Rank
// Fusion: rrf(d) = Σ 1/(k + rank_i(d)) over the lists containing d.
type HybridSearcher struct {
	store      *store.Store
	bm25       *BM25Searcher
	semantic   *SemanticSearcher
	rrfK       int
	maxResults int
}

// NewHybrid creates a hybrid searcher. maxResults caps how deep each
// contributing list goes.
func NewHybrid(st *store.Store, bm25 *BM25Searcher, sem *SemanticSearcher, rrfK, maxResults int) *HybridSearcher {
	if rrfK <= 0 {
		rrfK = 60
	}
	if maxResults <= 0 {
		maxResults = 100
	}
	return &HybridSearcher{store: st, bm25: bm25, semantic: sem, rrfK: rrfK, maxResults: maxResults}
}

// Search runs both rankings in parallel, fuses them, and returns one page.
// A document's snippet prefers the keyword extract (query terms visible)
// over the semantic chunk.
func (s *HybridSearcher) Search(ctx context.Context, q Query, page, size int) (*Page, error) {
	fetch := size * 3
	if fetch > s.maxResults {
		fetch = s.maxResults
	}
	// Paging past fetch needs deeper lists.
	if need := page * size; need > fetch {
		fetch = need
		if fetch > s.maxResults {
			fetch = s.maxResults
		}
	}

	var bm25Ranked, semRanked []RankedDoc
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bm25Ranked, err = s.bm25.Rank(gctx, q, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		semRanked, err = s.semantic.Rank(gctx, q.Raw, fetch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type fused struct {
		docID     string
		score     float64
		bm25Rank  *int
		semRank   *int
		chunkText string
	}
	byDoc := make(map[string]*fused)

	for i, ds := range bm25Ranked {
		rank := i + 1
		byDoc[ds.DocumentID] = &fused{
			docID:    ds.DocumentID,
			score:    1 / float64(s.rrfK+rank),
			bm25Rank: &rank,
		}
	}
	for i, ds := range semRanked {
		rank := i + 1
		f, ok := byDoc[ds.DocumentID]
		if !ok {
			f = &fused{docID: ds.DocumentID}
			byDoc[ds.DocumentID] = f
		}
		f.score += 1 / float64(s.rrfK+rank)
		f.semRank = &rank
		f.chunkText = ds.ChunkText
	}

	merged := make([]*fused, 0, len(byDoc))
	for _, f := range byDoc {
		merged = append(merged, f)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].docID < merged[j].docID
	})

	out := &Page{Results: []Result{}, Total: len(merged), PageNum: page, PageSize: size}
	start := (page - 1) * size
	if start >= len(merged) {
		return out, nil
	}
	end := start + size
	if end > len(merged) {
		end = len(merged)
	}
	slice := merged[start:end]

	ids := make([]string, len(slice))
	for i, f := range slice {
		ids[i] = f.docID
	}
	docs, err := s.store.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, f := range slice {
		doc, ok := docs[f.docID]
		if !ok {
			continue
		}
		var snippet string
		if f.bm25Rank != nil {
			snippet = highlight(makeSnippet(doc.CleanContent, q.Unique), q.RawTokens)
		} else {
			snippet = chunkSnippet(f.chunkText)
		}
		out.Results = append(out.Results, Result{
			DocumentID:   doc.ID,
			URL:          doc.URL,
			Title:        doc.Title,
			Source:       doc.Source,
			Snippet:      snippet,
			Score:        f.score,
			BM25Rank:     f.bm25Rank,
			SemanticRank: f.semRank,
		})
	}
	return out, nil
}
