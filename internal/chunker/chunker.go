// Package chunker splits normalized document text into fixed-size
// overlapping windows, the unit stored in the vector index.
package chunker

import "fmt"

// Chunker produces fixed-size overlapping windows over document text.
// Splitting is deterministic and purely functional.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. size is the window length in characters and
// overlap the number of characters shared between consecutive windows.
// overlap must be smaller than size, otherwise the window offset would
// never advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the ordered windows of text. Every window except possibly
// the last has exactly size characters; consecutive windows share overlap
// characters. Empty input yields no chunks. Windows are counted in runes so
// multi-byte characters are never cut in half.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
