package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder is a deterministic local embedder: each token is hashed into a
// bucket of the output vector. It needs no external service, which makes it
// the default for offline use and tests. Vectors are L2-normalized so
// cosine similarity behaves the same as with remote embeddings.
type Embedder struct {
	dim int
}

func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &Embedder{dim: dimension}
}

func (e *Embedder) Name() string { return "hash" }

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dim]++
	}
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum > 0 {
		inv := float32(1.0 / math.Sqrt(float64(sum)))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
