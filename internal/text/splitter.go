package text

import (
	"fmt"

	"pdfrag/internal/rag"
)

// ValidateWindow checks a chunk window. overlap >= size would never advance.
func ValidateWindow(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", rag.ErrConfiguration, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", rag.ErrConfiguration, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", rag.ErrConfiguration, overlap, size)
	}
	return nil
}

// Spans returns the start offset of every chunk for a text of length n.
// Chunk i starts at i*(size-overlap).
func Spans(n, size, overlap int) ([]int, error) {
	if err := ValidateWindow(size, overlap); err != nil {
		return nil, err
	}
	step := size - overlap
	var starts []int
	for start := 0; start < n; start += step {
		starts = append(starts, start)
	}
	return starts, nil
}

// Split cuts text into fixed windows of at most size runes, each starting
// size-overlap runes after the previous one. Empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	runes := []rune(text)
	starts, err := Spans(len(runes), size, overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(starts))
	for _, start := range starts {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
