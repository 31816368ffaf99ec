package search

import (
	"context"
	"math"
	"sort"

	"github.com/webseek/webseek/internal/store"
)

// BM25Searcher ranks documents with Okapi BM25 over the posting lists.
type BM25Searcher struct {
	store *store.Store
	k1    float64
	b     float64
}

// NewBM25 creates a keyword searcher with the given tuning parameters.
func NewBM25(st *store.Store, k1, b float64) *BM25Searcher {
	return &BM25Searcher{store: st, k1: k1, b: b}
}

// Rank scores every document matching any query term and returns the full
// ranking, best first, capped at limit. Terms whose IDF is non-positive
// (present in more than half the corpus) contribute nothing.
func (s *BM25Searcher) Rank(ctx context.Context, q Query, limit int) ([]RankedDoc, error) {
	if q.Empty() {
		return nil, nil
	}

	postings, err := s.store.PostingsForTerms(ctx, q.Unique)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.GetCollectionStats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.TotalDocuments == 0 {
		return nil, nil
	}

	candidates := make(map[string]bool)
	for _, list := range postings {
		for _, p := range list {
			candidates[p.DocumentID] = true
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	lengths, err := s.store.DocumentLengths(ctx, ids)
	if err != nil {
		return nil, err
	}

	n := float64(stats.TotalDocuments)
	avgdl := stats.AvgDocLength
	if avgdl <= 0 {
		avgdl = 1
	}

	scores := make(map[string]float64)
	for _, term := range q.Unique {
		list := postings[term]
		df := float64(len(list))
		if df == 0 {
			continue
		}
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		if idf <= 0 {
			continue
		}
		for _, p := range list {
			tf := float64(p.Frequency)
			dl := float64(lengths[p.DocumentID])
			norm := s.k1 * (1 - s.b + s.b*dl/avgdl)
			scores[p.DocumentID] += idf * tf * (s.k1 + 1) / (tf + norm)
		}
	}

	ranked := make([]RankedDoc, 0, len(scores))
	for id, score := range scores {
		if score > 0 {
			ranked = append(ranked, RankedDoc{DocumentID: id, Score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocumentID < ranked[j].DocumentID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Search returns one hydrated page of BM25 results.
func (s *BM25Searcher) Search(ctx context.Context, q Query, page, size int) (*Page, error) {
	ranked, err := s.Rank(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	return hydrateBM25(ctx, s.store, q, ranked, page, size)
}

func hydrateBM25(ctx context.Context, st *store.Store, q Query, ranked []RankedDoc, page, size int) (*Page, error) {
	out := &Page{Results: []Result{}, Total: len(ranked), PageNum: page, PageSize: size}
	slice := paginate(ranked, page, size)
	if len(slice) == 0 {
		return out, nil
	}

	ids := make([]string, len(slice))
	for i, ds := range slice {
		ids[i] = ds.DocumentID
	}
	docs, err := st.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, ds := range slice {
		doc, ok := docs[ds.DocumentID]
		if !ok {
			continue
		}
		snippet := highlight(makeSnippet(doc.CleanContent, q.Unique), q.RawTokens)
		out.Results = append(out.Results, Result{
			DocumentID: doc.ID,
			URL:        doc.URL,
			Title:      doc.Title,
			Source:     doc.Source,
			Snippet:    snippet,
			Score:      ds.Score,
		})
	}
	return out, nil
}
