// Package embed turns question text into dense vectors for corpus search.
package embed

import (
	"context"
	"math"
)

// Embedder maps texts to vectors of a fixed dimension. The same Embedder
// must be used to build the corpus index and to query it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the embedding space, e.g. "hash-256" or the model ID.
	Name() string
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length, or zero vectors, score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
