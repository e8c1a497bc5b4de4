package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkReconstructsWordSequence(t *testing.T) {
	words := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		words = append(words, "w"+strings.Repeat("x", i%7))
	}
	text := strings.Join(words, " \n\t ")

	c := NewWordChunker(300)
	chunks := c.Chunk(text)

	require.Len(t, chunks, 4) // ceil(1000/300)
	var got []string
	for _, ch := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(ch))
		got = append(got, strings.Fields(ch)...)
	}
	assert.Equal(t, words, got)
}

func TestChunkCounts(t *testing.T) {
	tests := []struct {
		name  string
		words int
		size  int
		want  int
	}{
		{"exact multiple", 600, 300, 2},
		{"trailing partial", 301, 300, 2},
		{"smaller than size", 5, 300, 1},
		{"size one", 3, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.TrimSpace(strings.Repeat("word ", tt.words))
			chunks := NewWordChunker(tt.size).Chunk(text)
			assert.Len(t, chunks, tt.want)
		})
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := NewWordChunker(300)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\t  "))
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("gradient descent minimizes loss ", 200)
	c := NewWordChunker(50)
	first := c.Chunk(text)
	second := c.Chunk(text)
	assert.Equal(t, first, second)
}
