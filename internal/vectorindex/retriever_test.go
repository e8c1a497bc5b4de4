package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduscribe/internal/domain"
	"eduscribe/internal/logger"
	"eduscribe/internal/store/memory"
)

type failingIndex struct{ calls int }

func (f *failingIndex) Index(context.Context, string, []domain.Chunk) error { return nil }

func (f *failingIndex) Search(context.Context, string, []float32, int) ([]domain.SearchResult, error) {
	f.calls++
	return nil, errors.New("index service down")
}

type staticEmbedder struct{ vec []float32 }

func (e staticEmbedder) Name() string   { return "static" }
func (e staticEmbedder) Dimension() int { return len(e.vec) }
func (e staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, nil
}
func (e staticEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine(nil, []float32{1, 1}))
}

func seedChunks(t *testing.T, st *memory.Store) {
	t.Helper()
	chunks := []domain.Chunk{
		{ID: "a", LectureID: "lec", DocumentID: "doc", Index: 0, Text: "orthogonal", Embedding: []float32{0, 1, 0}},
		{ID: "b", LectureID: "lec", DocumentID: "doc", Index: 1, Text: "aligned", Embedding: []float32{1, 0, 0}},
		{ID: "c", LectureID: "lec", DocumentID: "doc", Index: 2, Text: "also aligned", Embedding: []float32{2, 0, 0}},
	}
	require.NoError(t, st.UpsertChunks(context.Background(), chunks))
}

func TestExactSearchRanking(t *testing.T) {
	st := memory.NewStore()
	seedChunks(t, st)
	r := NewRetriever(staticEmbedder{vec: []float32{1, 0, 0}}, nil, st, logger.NewNop())

	results, err := r.Retrieve(context.Background(), "lec", "query", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	// identical scores keep insertion order
	assert.Equal(t, "aligned", results[0].Text)
	assert.Equal(t, "also aligned", results[1].Text)
	assert.Equal(t, "orthogonal", results[2].Text)
}

func TestSearchTopKBeyondCorpus(t *testing.T) {
	st := memory.NewStore()
	seedChunks(t, st)
	r := NewRetriever(staticEmbedder{vec: []float32{1, 0, 0}}, nil, st, logger.NewNop())

	results, err := r.Retrieve(context.Background(), "lec", "query", 50)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestApproxFailureFallsThroughToExact(t *testing.T) {
	st := memory.NewStore()
	seedChunks(t, st)
	approx := &failingIndex{}
	r := NewRetriever(staticEmbedder{vec: []float32{1, 0, 0}}, approx, st, logger.NewNop())

	results, err := r.Retrieve(context.Background(), "lec", "query", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, approx.calls)
	require.Len(t, results, 2)
	assert.Equal(t, "aligned", results[0].Text)
}

func TestSearchEmptyLecture(t *testing.T) {
	st := memory.NewStore()
	r := NewRetriever(staticEmbedder{vec: []float32{1, 0, 0}}, nil, st, logger.NewNop())

	results, err := r.Retrieve(context.Background(), "missing", "query", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
