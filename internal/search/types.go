// Package search implements the three ranking modes: BM25 keyword search,
// semantic vector search, and hybrid fusion of the two.
package search

// Search types accepted by the API.
const (
	TypeBM25     = "bm25"
	TypeSemantic = "semantic"
	TypeHybrid   = "hybrid"
)

// Result is one ranked document.
type Result struct {
	DocumentID string  `json:"documentId"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	// BM25Rank and SemanticRank are 1-based ranks in the contributing
	// lists; nil when the document did not appear in that list.
	BM25Rank     *int `json:"bm25Rank,omitempty"`
	SemanticRank *int `json:"semanticRank,omitempty"`
}

// Page is one page of ranked results.
type Page struct {
	Results  []Result `json:"results"`
	Total    int      `json:"total"`
	PageNum  int      `json:"page"`
	PageSize int      `json:"size"`
}

// RankedDoc is one entry of a full ranking, before hydration into a Result.
type RankedDoc struct {
	DocumentID string
	Score      float64
	// ChunkText carries the best-matching chunk for semantic rankings.
	ChunkText string
}

// paginate slices a full ranking into one page.
func paginate(ranked []RankedDoc, page, size int) []RankedDoc {
	start := (page - 1) * size
	if start >= len(ranked) {
		return nil
	}
	end := start + size
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end]
}
