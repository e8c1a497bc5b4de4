package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"eduscribe/internal/domain"
	"eduscribe/internal/logger"
)

// Index is an external approximate nearest-neighbor service scoped by
// lecture. Its failures never reach retrieval callers; the retriever falls
// through to the exact path instead.
type Index interface {
	Index(ctx context.Context, lectureID string, chunks []domain.Chunk) error
	Search(ctx context.Context, lectureID string, vector []float32, topK int) ([]domain.SearchResult, error)
}

// ChunkSource supplies all stored chunks for a lecture, in the order they
// were first inserted. Satisfied by store.Store.
type ChunkSource interface {
	ChunksByLecture(ctx context.Context, lectureID string) ([]domain.Chunk, error)
}

// Retriever ranks a lecture's chunks against a query. It tries the
// approximate index first and always has the exact cosine scan to fall
// back on, so a search never fails because the index service is down.
type Retriever struct {
	embedder domain.Embedder
	approx   Index // nil when no approximate backend is configured
	source   ChunkSource
	log      *logger.Logger
}

func NewRetriever(embedder domain.Embedder, approx Index, source ChunkSource, log *logger.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		approx:   approx,
		source:   source,
		log:      log.With("component", "retriever"),
	}
}

// Retrieve embeds the query and returns the topK most similar chunks.
func (r *Retriever) Retrieve(ctx context.Context, lectureID, query string, topK int) ([]domain.SearchResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.SearchVector(ctx, lectureID, vec, topK)
}

// SearchVector runs the approximate strategy when available, falling
// through to the exact scan on any error.
func (r *Retriever) SearchVector(ctx context.Context, lectureID string, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	if r.approx != nil {
		results, err := r.approx.Search(ctx, lectureID, vector, topK)
		if err == nil {
			return results, nil
		}
		r.log.Warn("approximate search failed, using exact fallback",
			"lecture_id", lectureID, "error", err)
	}
	return r.exactSearch(ctx, lectureID, vector, topK)
}

// exactSearch is the brute-force cosine scan over every stored vector for
// the lecture. O(n) per query, with n bounded by one lecture's corpus.
// Equal scores keep insertion order; topK beyond the corpus returns all.
func (r *Retriever) exactSearch(ctx context.Context, lectureID string, vector []float32, topK int) ([]domain.SearchResult, error) {
	chunks, err := r.source.ChunksByLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(chunks))
	for _, ch := range chunks {
		results = append(results, domain.SearchResult{
			Text:       ch.Text,
			DocumentID: ch.DocumentID,
			Score:      Cosine(vector, ch.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Cosine returns dot(a,b) / (|a|*|b|), or 0 when either norm is 0.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	for i := n; i < len(a); i++ {
		normA += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
