// Package indexer runs the document ingestion pipeline: load, chunk,
// embed, insert into the vector index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docquery/docquery/internal/chunker"
	"github.com/docquery/docquery/internal/docs"
	"github.com/docquery/docquery/internal/embedding"
	"github.com/docquery/docquery/internal/index"
)

// Result contains statistics about one indexing run.
type Result struct {
	Documents    int
	Chunks       int
	SkippedFiles int
	Duration     time.Duration
}

// Pipeline orchestrates the full indexing process.
type Pipeline struct {
	loader   *docs.Loader
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	index    index.Index
	logger   *slog.Logger
}

// NewPipeline creates an indexing pipeline with the given components.
func NewPipeline(
	loader *docs.Loader,
	chunker *chunker.Chunker,
	embedder embedding.Embedder,
	idx index.Index,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    idx,
		logger:   logger,
	}
}

// Run indexes every document from the source directory. Unreadable files
// were already skipped by the loader; an embedding or insert failure
// aborts the remaining run, leaving whatever was indexed so far queryable.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	loaded, err := p.loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	result := &Result{SkippedFiles: loaded.Skipped}
	p.logger.Info("starting indexing", "documents", len(loaded.Documents), "skipped_files", loaded.Skipped)

	for _, doc := range loaded.Documents {
		chunks, err := p.indexDocument(ctx, doc)
		if err != nil {
			return result, fmt.Errorf("index document %q: %w", doc.Name, err)
		}
		result.Documents++
		result.Chunks += chunks
	}

	result.Duration = time.Since(start)
	p.logger.Info("indexing complete",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return result, nil
}

// indexDocument chunks, embeds and inserts a single document. Chunk ids
// are deterministic ("<name>_<seq>") so a rerun overwrites rather than
// duplicates; stored text carries the source name prefix so retrieved
// passages identify their document.
func (p *Pipeline) indexDocument(ctx context.Context, doc docs.Document) (int, error) {
	chunks := p.chunker.Split(doc.Content)
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embed: got %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	for i, chunk := range chunks {
		id := fmt.Sprintf("%s_%d", doc.Name, i)
		text := fmt.Sprintf("%s: %s", doc.Name, chunk)
		metadata := map[string]string{"source": doc.Name}
		if err := p.index.Upsert(ctx, id, text, metadata, embeddings[i]); err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", id, err)
		}
	}

	p.logger.Debug("indexed document", "name", doc.Name, "chunks", len(chunks))
	return len(chunks), nil
}
