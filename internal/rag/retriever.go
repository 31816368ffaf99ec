// Package rag answers questions over the indexed corpus: retrieval of
// relevant chunks, LLM answer generation with citations, and a recursive
// controller that widens retrieval through follow-up queries.
package rag

import (
	"context"
	"sort"

	"github.com/webseek/webseek/internal/search"
	"github.com/webseek/webseek/internal/store"
)

// bm25ContextChars bounds how much of a keyword-matched document is passed to
// the LLM when no chunk is available for it.
const bm25ContextChars = 1000

// Context is one retrieved piece of evidence.
type Context struct {
	DocumentID string
	ChunkText  string
	Title      string
	URL        string
	Source     string
	Score      float64
}

// Retriever gathers answer context from both ranking sources.
type Retriever struct {
	store    *store.Store
	bm25     *search.BM25Searcher
	semantic *search.SemanticSearcher
}

// NewRetriever wires a retriever over the shared searchers.
func NewRetriever(st *store.Store, bm25 *search.BM25Searcher, sem *search.SemanticSearcher) *Retriever {
	return &Retriever{store: st, bm25: bm25, semantic: sem}
}

// Retrieve returns up to topK contexts, most relevant first. Semantic hits
// contribute their best chunk; keyword hits not already present contribute
// the head of their content. Either source failing leaves the other's
// results usable.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Context, error) {
	if topK <= 0 {
		topK = 5
	}

	var contexts []Context
	seen := make(map[string]bool)

	semHits, semErr := r.semantic.Rank(ctx, query, topK)
	for _, h := range semHits {
		contexts = append(contexts, Context{
			DocumentID: h.DocumentID,
			ChunkText:  h.ChunkText,
			Score:      h.Score,
		})
		seen[h.DocumentID] = true
	}

	q := search.ProcessQuery(query)
	bm25Hits, bm25Err := r.bm25.Rank(ctx, q, topK)
	for _, h := range bm25Hits {
		if seen[h.DocumentID] {
			continue
		}
		seen[h.DocumentID] = true
		contexts = append(contexts, Context{
			DocumentID: h.DocumentID,
			Score:      h.Score,
		})
	}
	if semErr != nil && bm25Err != nil {
		return nil, semErr
	}

	if err := r.hydrate(ctx, contexts); err != nil {
		return nil, err
	}

	sort.SliceStable(contexts, func(i, j int) bool {
		return contexts[i].Score > contexts[j].Score
	})
	if len(contexts) > topK {
		contexts = contexts[:topK]
	}
	return contexts, nil
}

// hydrate fills titles, URLs, and missing chunk text from document rows.
func (r *Retriever) hydrate(ctx context.Context, contexts []Context) error {
	if len(contexts) == 0 {
		return nil
	}
	ids := make([]string, len(contexts))
	for i := range contexts {
		ids[i] = contexts[i].DocumentID
	}
	docs, err := r.store.GetDocuments(ctx, ids)
	if err != nil {
		return err
	}
	for i := range contexts {
		doc, ok := docs[contexts[i].DocumentID]
		if !ok {
			continue
		}
		contexts[i].Title = doc.Title
		contexts[i].URL = doc.URL
		contexts[i].Source = doc.Source
		if contexts[i].ChunkText == "" {
			text := doc.CleanContent
			if len(text) > bm25ContextChars {
				text = text[:bm25ContextChars]
			}
			contexts[i].ChunkText = text
		}
	}
	return nil
}
