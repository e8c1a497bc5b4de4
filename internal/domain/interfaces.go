package domain

import "context"

// Embedder converts free text into a fixed-dimension numeric vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionModel is the external language-model capability. A nil model
// means the capability is not configured and callers take their fallback.
type CompletionModel interface {
	Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
}

// Chunker splits extracted document text into retrieval-sized pieces.
type Chunker interface {
	Chunk(text string) []string
}

// Extractor turns an uploaded file into plain text. An empty result means
// the format is unsupported and ingestion of that document is aborted.
type Extractor interface {
	Extract(path string) (string, error)
}

// Retriever produces ranked relevant chunks for a lecture given a query.
type Retriever interface {
	Retrieve(ctx context.Context, lectureID, query string, topK int) ([]SearchResult, error)
}
