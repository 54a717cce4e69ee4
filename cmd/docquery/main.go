// Package main runs the document Q&A HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docquery/docquery/internal/answer"
	"github.com/docquery/docquery/internal/chunker"
	"github.com/docquery/docquery/internal/config"
	"github.com/docquery/docquery/internal/docs"
	"github.com/docquery/docquery/internal/embedding"
	"github.com/docquery/docquery/internal/generate"
	"github.com/docquery/docquery/internal/history"
	"github.com/docquery/docquery/internal/index"
	"github.com/docquery/docquery/internal/index/memory"
	"github.com/docquery/docquery/internal/index/qdrantindex"
	"github.com/docquery/docquery/internal/indexer"
	"github.com/docquery/docquery/internal/server"
)

func main() {
	// Load .env if present (local development), ignore if missing
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load(getEnv("DOCQUERY_CONFIG", "config.yaml"))
	if err != nil {
		return err
	}

	embedder, err := embedding.NewOpenAIEmbedder(
		cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	if err != nil {
		return err
	}

	idx, closeIndex, err := newIndex(cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	ck, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	loader := docs.NewLoader(cfg.DocsDir, logger)
	pipeline := indexer.NewPipeline(loader, ck, embedder, idx, logger)
	turns := history.NewLog(cfg.History.Retention)
	generator := generate.NewOllamaClient(cfg.Generation.Host, cfg.Generation.Model, cfg.GenerateTimeout())
	svc := answer.NewService(embedder, idx, turns, generator, pipeline,
		cfg.Retrieval.TopK, cfg.History.Window, logger)

	// Kick off indexing at startup rather than waiting for the first
	// question; later triggers are no-ops.
	svc.EnsureIndexing(ctx)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.NewMux(svc, idx, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}

// newIndex builds the configured index backend. The returned close
// function is a no-op for the in-memory backend.
func newIndex(cfg *config.Config) (index.Index, func(), error) {
	switch cfg.Index.Backend {
	case "qdrant":
		q := cfg.Index.Qdrant
		idx, err := qdrantindex.New(q.Host, q.Port, q.Collection, cfg.Embedding.Dimension)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() { idx.Close() }, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
