// Package index defines the vector index contract shared by the in-memory
// and Qdrant backends.
package index

import "context"

// Result is one retrieved chunk with its similarity score.
// Higher scores rank first.
type Result struct {
	Text     string
	Metadata map[string]string
	Score    float64
}

// Index stores chunk embeddings and supports nearest-neighbor retrieval.
//
// Upsert is idempotent per id and safe under concurrent writers. Query on
// an empty index returns an empty slice, never an error; callers treat
// that as "no relevant context". Size reports the number of stored chunks
// and is how readiness of the background indexing run is inferred.
type Index interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]string, embedding []float32) error
	Query(ctx context.Context, embedding []float32, topK int) ([]Result, error)
	Size(ctx context.Context) (int, error)
}
