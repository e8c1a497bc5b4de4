package chunker

import "strings"

// DefaultSize is the word count per chunk used for document ingestion.
const DefaultSize = 300

// WordChunker splits text into consecutive fixed-size word windows. The
// trailing partial window is kept when non-empty. Splitting is
// deterministic: the same input and size always yield the same chunks.
type WordChunker struct {
	size int
}

func NewWordChunker(size int) *WordChunker {
	if size <= 0 {
		size = DefaultSize
	}
	return &WordChunker{size: size}
}

// Chunk splits on whitespace-delimited tokens into groups of size tokens.
// Empty or whitespace-only input yields no chunks; no chunk is ever empty.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(words)+c.size-1)/c.size)
	for i := 0; i < len(words); i += c.size {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}
