//go:build integration

package qdrantindex

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestIndex connects to a local Qdrant and skips the test when the
// server is not running.
func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New("localhost", 6334, fmt.Sprintf("docquery_test_%s", t.Name()), 4)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestUpsertQueryRoundTrip(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	err := idx.Upsert(ctx, "town_0", "town: Main Street has three potholes.",
		map[string]string{"source": "town"}, []float32{1, 0, 0, 0})
	require.NoError(t, err)

	results, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 6)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Text, "Main Street")
	assert.Equal(t, "town", results[0].Metadata["source"])
}

func TestUpsert_IdempotentByID(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "doc_0", "old", nil, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Upsert(ctx, "doc_0", "new", nil, []float32{1, 0, 0, 0}))

	size, err := idx.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	idx := setupTestIndex(t)
	err := idx.Upsert(context.Background(), "bad", "bad", nil, []float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
