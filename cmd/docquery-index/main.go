// Package main provides the CLI for running the indexing pipeline in the
// foreground, outside the serving process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docquery/docquery/internal/chunker"
	"github.com/docquery/docquery/internal/config"
	"github.com/docquery/docquery/internal/docs"
	"github.com/docquery/docquery/internal/embedding"
	"github.com/docquery/docquery/internal/index"
	"github.com/docquery/docquery/internal/index/memory"
	"github.com/docquery/docquery/internal/index/qdrantindex"
	"github.com/docquery/docquery/internal/indexer"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docquery-index",
	Short: "Document indexing tool for the Q&A service",
	Long:  "CLI tool for building the document chunk index out-of-band",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index all documents from the configured directory",
	Long: `Loads every document from the configured directory, chunks and
embeds it and inserts the chunks into the configured index backend.

Chunk ids are deterministic, so rerunning overwrites existing chunks
instead of duplicating them. With the in-memory backend this command only
validates the pipeline; the index vanishes with the process.

Environment variables:
  DOCQUERY_CONFIG   Config file path (default: config.yaml)
  DOCQUERY_DOCS_DIR Document directory override
  OPENAI_API_KEY    OpenAI API key for embeddings (required)
  QDRANT_HOST       Qdrant hostname override
  QDRANT_PORT       Qdrant gRPC port override`,
	RunE: runIndex,
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.AddCommand(runCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	path := configPath
	if path == "" {
		path = getEnv("DOCQUERY_CONFIG", "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Indexing documents from %s into %s backend...\n", cfg.DocsDir, cfg.Index.Backend)

	embedder, err := embedding.NewOpenAIEmbedder(
		cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	var idx index.Index
	switch cfg.Index.Backend {
	case "qdrant":
		q := cfg.Index.Qdrant
		fmt.Printf("Connecting to Qdrant at %s:%d...\n", q.Host, q.Port)
		qidx, err := qdrantindex.New(q.Host, q.Port, q.Collection, cfg.Embedding.Dimension)
		if err != nil {
			return fmt.Errorf("connect to Qdrant: %w", err)
		}
		defer qidx.Close()
		idx = qidx
	default:
		idx = memory.New()
	}

	ck, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	loader := docs.NewLoader(cfg.DocsDir, slog.Default())
	pipeline := indexer.NewPipeline(loader, ck, embedder, idx, slog.Default())

	result, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Indexing complete!")
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	if result.SkippedFiles > 0 {
		fmt.Printf("  Skipped files: %d\n", result.SkippedFiles)
	}
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))

	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
