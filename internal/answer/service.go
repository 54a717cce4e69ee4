// Package answer orchestrates a question through the full retrieval and
// generation pipeline. Every internal failure degrades to a fixed
// user-facing fallback string; the endpoint never surfaces a hard error
// for a normal question.
package answer

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/docquery/docquery/internal/embedding"
	"github.com/docquery/docquery/internal/generate"
	"github.com/docquery/docquery/internal/history"
	"github.com/docquery/docquery/internal/index"
	"github.com/docquery/docquery/internal/indexer"
)

// FallbackMessage is returned whenever embedding or generation fails.
// The real cause is logged, not shown to the user.
const FallbackMessage = "Sorry, I could not produce an answer right now. Please try again later."

// Service answers questions against the indexed corpus.
type Service struct {
	embedder      embedding.Embedder
	index         index.Index
	history       *history.Log
	generator     generate.Generator
	pipeline      *indexer.Pipeline
	topK          int
	historyWindow int
	logger        *slog.Logger

	indexOnce sync.Once
}

// NewService wires the orchestrator. topK and historyWindow fall back to
// the source system's values when non-positive.
func NewService(
	embedder embedding.Embedder,
	idx index.Index,
	log *history.Log,
	generator generate.Generator,
	pipeline *indexer.Pipeline,
	topK, historyWindow int,
	logger *slog.Logger,
) *Service {
	if topK <= 0 {
		topK = 6
	}
	if historyWindow <= 0 {
		historyWindow = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:      embedder,
		index:         idx,
		history:       log,
		generator:     generator,
		pipeline:      pipeline,
		topK:          topK,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Answer runs the full pipeline for one question and returns the answer
// text. The turn is recorded in conversation memory even when the answer
// is the fallback, matching the behavior of the original system.
func (s *Service) Answer(ctx context.Context, question string) string {
	s.EnsureIndexing(ctx)

	qEmbedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.logger.Error("question embedding failed", "error", err)
		return FallbackMessage
	}

	results, err := s.index.Query(ctx, qEmbedding, s.topK)
	if err != nil {
		// Treated as "no relevant context": the model is still invoked
		// and will answer with the not-found phrase.
		s.logger.Error("index query failed", "error", err)
		results = nil
	}
	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Text
	}

	turns := s.history.Recent(s.historyWindow)
	prompt := buildPrompt(passages, turns, question)

	answerText, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("generation failed", "kind", generate.Kind(err), "error", err)
		answerText = FallbackMessage
	} else if answerText = strings.TrimSpace(answerText); answerText == "" {
		s.logger.Error("generation failed", "kind", "empty_response")
		answerText = FallbackMessage
	}

	s.history.Append(history.Turn{Question: question, Answer: answerText})
	return answerText
}

// EnsureIndexing launches the background indexing run at most once per
// process, regardless of how many requests trigger it concurrently. The
// call returns immediately; the run proceeds on its own goroutine,
// detached from the triggering request's cancellation.
func (s *Service) EnsureIndexing(ctx context.Context) {
	s.indexOnce.Do(func() {
		bg := context.WithoutCancel(ctx)
		go func() {
			size, err := s.index.Size(bg)
			if err != nil {
				s.logger.Error("index size check failed", "error", err)
				return
			}
			if size > 0 {
				s.logger.Info("index already populated", "chunks", size)
				return
			}
			s.logger.Info("starting background indexing")
			result, err := s.pipeline.Run(bg)
			if err != nil {
				s.logger.Error("background indexing aborted", "error", err)
				return
			}
			s.logger.Info("background indexing finished",
				"documents", result.Documents,
				"chunks", result.Chunks,
				"duration", result.Duration,
			)
		}()
	})
}
