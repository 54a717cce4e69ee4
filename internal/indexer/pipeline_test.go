package indexer

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery/docquery/internal/chunker"
	"github.com/docquery/docquery/internal/docs"
	"github.com/docquery/docquery/internal/index/memory"
)

// stubEmbedder maps words to hash buckets so texts sharing words get
// similar vectors. Deterministic, no network.
type stubEmbedder struct {
	batchCalls atomic.Int64
	failAfter  int64 // fail when batchCalls exceeds this; 0 disables
}

func (s *stubEmbedder) Dimension() int { return 32 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	calls := s.batchCalls.Add(1)
	if s.failAfter > 0 && calls > s.failAfter {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, s.Dimension())
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(word, ".,!?")))
			vec[h.Sum32()%uint32(len(vec))]++
		}
		out[i] = vec
	}
	return out, nil
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRun_SingleShortDocumentSingleChunk(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "town.txt", "Main Street has three potholes.")

	embedder := &stubEmbedder{}
	idx := memory.New()
	ck, err := chunker.New(500, 50)
	require.NoError(t, err)

	pipeline := NewPipeline(docs.NewLoader(dir, nil), ck, embedder, idx, nil)
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Documents)
	assert.Equal(t, 1, result.Chunks, "content shorter than the chunk size yields one chunk")
	assert.Equal(t, 0, result.SkippedFiles)

	size, err := idx.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	qvec, err := embedder.Embed(context.Background(), "What street has potholes?")
	require.NoError(t, err)
	results, err := idx.Query(context.Background(), qvec, 6)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "Main Street")
	assert.True(t, strings.HasPrefix(results[0].Text, "town: "), "stored text carries the source prefix")
	assert.Equal(t, "town", results[0].Metadata["source"])
}

func TestRun_MultipleDocumentsChunked(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", strings.Repeat("alpha beta gamma delta ", 60))
	writeDoc(t, dir, "b.txt", "short document")

	embedder := &stubEmbedder{}
	idx := memory.New()
	ck, err := chunker.New(200, 20)
	require.NoError(t, err)

	pipeline := NewPipeline(docs.NewLoader(dir, nil), ck, embedder, idx, nil)
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Documents)
	assert.Greater(t, result.Chunks, 2, "long document must split into several chunks")

	size, err := idx.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, size)
}

func TestRun_EmbeddingFailureAbortsRunKeepsPartialIndex(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "first document")
	writeDoc(t, dir, "b.txt", "second document")

	embedder := &stubEmbedder{failAfter: 1} // first document embeds, second fails
	idx := memory.New()
	ck, err := chunker.New(500, 50)
	require.NoError(t, err)

	pipeline := NewPipeline(docs.NewLoader(dir, nil), ck, embedder, idx, nil)
	result, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, result.Documents, "work before the failure is reported")

	// The partially built index stays queryable
	size, err := idx.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestRun_RerunDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "town.txt", "Main Street has three potholes.")

	embedder := &stubEmbedder{}
	idx := memory.New()
	ck, err := chunker.New(500, 50)
	require.NoError(t, err)

	pipeline := NewPipeline(docs.NewLoader(dir, nil), ck, embedder, idx, nil)
	_, err = pipeline.Run(context.Background())
	require.NoError(t, err)
	_, err = pipeline.Run(context.Background())
	require.NoError(t, err)

	size, err := idx.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, size, "deterministic ids make reruns idempotent")
}

func TestRun_MissingDirectory(t *testing.T) {
	ck, err := chunker.New(500, 50)
	require.NoError(t, err)
	pipeline := NewPipeline(docs.NewLoader(filepath.Join(t.TempDir(), "nope"), nil), ck, &stubEmbedder{}, memory.New(), nil)
	_, err = pipeline.Run(context.Background())
	assert.Error(t, err)
}
