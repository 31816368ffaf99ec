package search

import (
	"context"
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/webseek/webseek/internal/semindex"
	"github.com/webseek/webseek/internal/store"
)

// semanticOverfetch is how many chunk hits are pulled per requested result:
// several chunks of one document can land in the neighbor list, and the
// ranking keeps only the best chunk per document.
const semanticOverfetch = 5

// Embedder is the query-embedding dependency of the semantic searcher.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// SemanticSearcher ranks documents by cosine similarity between the query
// embedding and their best chunk.
type SemanticSearcher struct {
	store    *store.Store
	embedder Embedder
	vectors  *semindex.Index
	logger   *slog.Logger
}

// NewSemantic creates a semantic searcher over the shared vector index.
func NewSemantic(st *store.Store, emb Embedder, vectors *semindex.Index) *SemanticSearcher {
	return &SemanticSearcher{store: st, embedder: emb, vectors: vectors, logger: slog.Default()}
}

// Rank returns documents by descending best-chunk similarity, capped at
// limit. Each entry carries the text of its best chunk for snippets.
func (s *SemanticSearcher) Rank(ctx context.Context, rawQuery string, limit int) ([]RankedDoc, error) {
	if limit <= 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{rawQuery})
	if err != nil {
		// An unreachable embedding backend degrades the semantic side to no
		// hits rather than failing the whole search; keyword results, when
		// the caller has them, still go out.
		s.logger.Warn("query_embed_failed", slog.String("error", err.Error()))
		return nil, nil
	}

	hits, err := s.vectors.Search(vecs[0], limit*semanticOverfetch)
	if err != nil {
		return nil, err
	}

	// Best chunk per document.
	type best struct {
		sim   float64
		chunk int
	}
	bestByDoc := make(map[string]best)
	for _, h := range hits {
		if cur, ok := bestByDoc[h.DocumentID]; !ok || h.Similarity > cur.sim {
			bestByDoc[h.DocumentID] = best{sim: h.Similarity, chunk: h.ChunkIndex}
		}
	}

	ranked := make([]RankedDoc, 0, len(bestByDoc))
	for docID, b := range bestByDoc {
		chunk, err := s.store.GetChunk(ctx, docID, b.chunk)
		if err != nil {
			// Chunk replaced since the graph snapshot; skip the stale hit.
			continue
		}
		ranked = append(ranked, RankedDoc{DocumentID: docID, Score: b.sim, ChunkText: chunk.Text})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocumentID < ranked[j].DocumentID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Search returns one hydrated page of semantic results.
func (s *SemanticSearcher) Search(ctx context.Context, rawQuery string, page, size int) (*Page, error) {
	ranked, err := s.Rank(ctx, rawQuery, page*size*semanticOverfetch)
	if err != nil {
		return nil, err
	}
	out := &Page{Results: []Result{}, Total: len(ranked), PageNum: page, PageSize: size}
	slice := paginate(ranked, page, size)
	if len(slice) == 0 {
		return out, nil
	}

	ids := make([]string, len(slice))
	for i, ds := range slice {
		ids[i] = ds.DocumentID
	}
	docs, err := s.store.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, ds := range slice {
		doc, ok := docs[ds.DocumentID]
		if !ok {
			continue
		}
		out.Results = append(out.Results, Result{
			DocumentID: doc.ID,
			URL:        doc.URL,
			Title:      doc.Title,
			Source:     doc.Source,
			Snippet:    chunkSnippet(ds.ChunkText),
			Score:      ds.Score,
		})
	}
	return out, nil
}

// chunkSnippet trims a chunk to snippet length, never mid-rune.
func chunkSnippet(text string) string {
	if len(text) <= snippetMaxLen {
		return text
	}
	end := snippetMaxLen
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[:end] + "..."
}
