package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/rag"
)

func TestSplit(t *testing.T) {
	t.Run("Default Window Example", func(t *testing.T) {
		text := strings.Repeat("a", 1700)
		chunks, err := Split(text, 800, 50)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 800)
		assert.Len(t, chunks[1], 800)
		assert.Len(t, chunks[2], 200)

		starts, err := Spans(len(text), 800, 50)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 750, 1500}, starts)
	})

	t.Run("Empty Input", func(t *testing.T) {
		chunks, err := Split("", 800, 50)
		assert.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Shorter Than Window", func(t *testing.T) {
		chunks, err := Split("hello", 800, 50)
		assert.NoError(t, err)
		assert.Equal(t, []string{"hello"}, chunks)
	})

	t.Run("Overlap Is Shared", func(t *testing.T) {
		chunks, err := Split("abcdefghij", 4, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcd", "cdef", "efgh", "ghij", "ij"}, chunks)
	})

	t.Run("Counts Runes Not Bytes", func(t *testing.T) {
		chunks, err := Split("héllo wörld", 5, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"héllo", " wörl", "d"}, chunks)
	})
}

func TestSplit_InvalidWindow(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"Overlap Equals Size", 10, 10},
		{"Overlap Exceeds Size", 10, 20},
		{"Zero Size", 0, 0},
		{"Negative Overlap", 10, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split("some text", tt.size, tt.overlap)
			assert.ErrorIs(t, err, rag.ErrConfiguration)
			assert.Nil(t, chunks)
		})
	}
}

func TestSplit_CoversTextAndIsDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 97)
	windows := []struct{ size, overlap int }{{800, 50}, {100, 0}, {37, 36}, {1, 0}, {5000, 10}}

	for _, w := range windows {
		first, err := Split(text, w.size, w.overlap)
		require.NoError(t, err)
		second, err := Split(text, w.size, w.overlap)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		starts, err := Spans(len(text), w.size, w.overlap)
		require.NoError(t, err)
		require.Len(t, first, len(starts))

		// Rebuild the text from each chunk's non-overlapping prefix.
		var b strings.Builder
		for i, c := range first {
			assert.LessOrEqual(t, len(c), w.size)
			assert.Equal(t, text[starts[i]:starts[i]+len(c)], c)
			if i < len(first)-1 {
				b.WriteString(c[:starts[i+1]-starts[i]])
			} else {
				b.WriteString(c)
			}
		}
		assert.Equal(t, text, b.String())
	}
}
