package extract

import (
	"os"
	"path/filepath"
	"strings"
)

// TextExtractor reads plain-text files. Other formats (PDF, slides, word
// processors) are handled by external collaborators with the same
// contract: empty text means unsupported and ingestion is aborted.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// Extract returns the file contents for .txt and .md files and an empty
// string for anything else.
func (e *TextExtractor) Extract(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", nil
	}
}
