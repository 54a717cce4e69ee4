// Package embedding maps text to fixed-dimension vectors. The provider is
// an external capability reached through the Embedder interface so the
// pipeline and tests can swap implementations.
package embedding

import "context"

// Embedder converts text into a fixed-dimension numeric vector.
// Embed is deterministic for identical input. A failure aborts the
// enclosing operation: indexing of a document, or a single query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
