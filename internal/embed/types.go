// Package embed turns text into dense vectors for semantic search.
package embed

import (
	"context"
	"math"
)

// Embedder produces L2-normalized embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector width this embedder produces.
	Dimensions() int
}

// Normalize scales v to unit L2 norm in place and returns it.
// Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
