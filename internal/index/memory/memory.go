// Package memory provides a brute-force cosine similarity index held in
// process memory. It is the default backend: the corpus is small enough
// that an exact linear scan beats running a vector database.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/docquery/docquery/internal/index"
)

var errDimensionMismatch = errors.New("embedding dimension mismatch")

type entry struct {
	id       string
	text     string
	metadata map[string]string
	vector   []float32
	seq      int // insertion order, breaks score ties
}

// Index is an in-memory vector index guarded by a RWMutex so queries can
// run concurrently with the background indexer.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
	byID      map[string]int
	nextSeq   int
}

// New creates an empty in-memory index. The embedding dimension is fixed
// by the first inserted vector.
func New() *Index {
	return &Index{byID: make(map[string]int)}
}

// Upsert inserts or replaces the chunk with the given id. Replacement
// keeps the original insertion position so tie-breaking stays stable.
func (x *Index) Upsert(_ context.Context, id, text string, metadata map[string]string, embedding []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dimension == 0 {
		x.dimension = len(embedding)
	} else if len(embedding) != x.dimension {
		return errDimensionMismatch
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	if pos, ok := x.byID[id]; ok {
		seq := x.entries[pos].seq
		x.entries[pos] = entry{id: id, text: text, metadata: meta, vector: vec, seq: seq}
		return nil
	}

	x.byID[id] = len(x.entries)
	x.entries = append(x.entries, entry{id: id, text: text, metadata: meta, vector: vec, seq: x.nextSeq})
	x.nextSeq++
	return nil
}

// Query returns up to topK entries ranked by descending cosine similarity.
// Ties rank by insertion order. An empty index yields an empty result.
func (x *Index) Query(_ context.Context, embedding []float32, topK int) ([]index.Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(embedding) != x.dimension {
		return nil, errDimensionMismatch
	}

	type scored struct {
		pos   int
		score float64
	}
	candidates := make([]scored, len(x.entries))
	for i := range x.entries {
		candidates[i] = scored{pos: i, score: cosine(x.entries[i].vector, embedding)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return x.entries[candidates[i].pos].seq < x.entries[candidates[j].pos].seq
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]index.Result, 0, topK)
	for _, c := range candidates[:topK] {
		e := x.entries[c.pos]
		meta := make(map[string]string, len(e.metadata))
		for k, v := range e.metadata {
			meta[k] = v
		}
		results = append(results, index.Result{Text: e.text, Metadata: meta, Score: c.score})
	}
	return results, nil
}

// Size returns the number of stored chunks.
func (x *Index) Size(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
