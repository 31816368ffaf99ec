package embed

import (
	"context"
	"hash/fnv"
	"math"
)

// StaticEmbedder produces deterministic hash-based vectors without any model
// backend. Texts sharing tokens get correlated vectors, which is enough for
// exercising vector search paths in tests and offline development.
type StaticEmbedder struct {
	dimensions int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStatic creates a deterministic embedder of the given width.
func NewStatic(dimensions int) *StaticEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &StaticEmbedder{dimensions: dimensions}
}

func (e *StaticEmbedder) Dimensions() int { return e.dimensions }

func (e *StaticEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *StaticEmbedder) embedOne(text string) []float32 {
	v := make([]float32, e.dimensions)
	// Sum a per-token signature so overlapping vocabularies yield similar
	// vectors.
	start := 0
	flush := func(end int) {
		if end <= start {
			return
		}
		h := fnv.New64a()
		h.Write([]byte(text[start:end]))
		seed := h.Sum64()
		for d := 0; d < e.dimensions; d++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			v[d] += float32(math.Sin(float64(seed%100003) / 100003.0 * 2 * math.Pi))
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		isWord := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isWord {
			flush(i)
			start = i + 1
		}
	}
	flush(len(text))
	return Normalize(v)
}
