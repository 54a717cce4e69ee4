package answer

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery/docquery/internal/chunker"
	"github.com/docquery/docquery/internal/docs"
	"github.com/docquery/docquery/internal/generate"
	"github.com/docquery/docquery/internal/history"
	"github.com/docquery/docquery/internal/index/memory"
	"github.com/docquery/docquery/internal/indexer"
)

// stubEmbedder maps words to hash buckets so texts sharing words get
// similar vectors. Deterministic, no network.
type stubEmbedder struct {
	batchCalls atomic.Int64
	failEmbed  atomic.Bool
}

func (s *stubEmbedder) Dimension() int { return 32 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.failEmbed.Load() {
		return nil, errors.New("embedding backend unavailable")
	}
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.batchCalls.Add(1)
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

// generatorFunc adapts a function to the Generator interface.
type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// echoGenerator returns "ANSWER:" plus the last line of the prompt, which
// is the current question when prompt assembly order is respected.
func echoGenerator() generate.Generator {
	return generatorFunc(func(_ context.Context, prompt string) (string, error) {
		lines := strings.Split(strings.TrimSpace(prompt), "\n")
		return "ANSWER:" + lines[len(lines)-1], nil
	})
}

type fixture struct {
	svc      *Service
	embedder *stubEmbedder
	idx      *memory.Index
	log      *history.Log
}

func newFixture(t *testing.T, docsByName map[string]string, gen generate.Generator) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docsByName {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	embedder := &stubEmbedder{}
	idx := memory.New()
	log := history.NewLog(0)
	ck, err := chunker.New(500, 50)
	require.NoError(t, err)
	pipeline := indexer.NewPipeline(docs.NewLoader(dir, nil), ck, embedder, idx, nil)

	return &fixture{
		svc:      NewService(embedder, idx, log, gen, pipeline, 6, 5, nil),
		embedder: embedder,
		idx:      idx,
		log:      log,
	}
}

func (f *fixture) waitIndexed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		size, err := f.idx.Size(context.Background())
		return err == nil && size > 0
	}, 2*time.Second, 5*time.Millisecond, "background indexing did not complete")
}

func TestAnswer_EndToEndPromptOrder(t *testing.T) {
	f := newFixture(t, map[string]string{
		"town.txt": "Main Street has three potholes.",
	}, echoGenerator())

	ctx := context.Background()
	f.svc.EnsureIndexing(ctx)
	f.waitIndexed(t)

	size, err := f.idx.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size, "short document indexes as exactly one chunk")

	// Retrieval must surface the relevant passage
	qvec, err := f.embedder.Embed(ctx, "What street has potholes?")
	require.NoError(t, err)
	results, err := f.idx.Query(ctx, qvec, 6)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Text, "Main Street")

	// The echo generator proves the question is the prompt's final section
	answer := f.svc.Answer(ctx, "What street has potholes?")
	assert.Contains(t, answer, "What street has potholes?")
	assert.True(t, strings.HasPrefix(answer, "ANSWER:"))
}

func TestAnswer_GenerationFailureReturnsFallbackAndRecordsTurn(t *testing.T) {
	failing := generatorFunc(func(ctx context.Context, _ string) (string, error) {
		return "", context.DeadlineExceeded
	})
	f := newFixture(t, map[string]string{"town.txt": "Main Street has three potholes."}, failing)

	answer := f.svc.Answer(context.Background(), "What street has potholes?")
	assert.Equal(t, FallbackMessage, answer)

	recent := f.log.Recent(1)
	require.Len(t, recent, 1, "the turn is recorded even for fallback answers")
	assert.Equal(t, "What street has potholes?", recent[0].Question)
	assert.Equal(t, FallbackMessage, recent[0].Answer)
}

func TestAnswer_EmptyGenerationTreatedAsFailure(t *testing.T) {
	empty := generatorFunc(func(ctx context.Context, _ string) (string, error) {
		return "   ", nil
	})
	f := newFixture(t, map[string]string{"town.txt": "content"}, empty)

	answer := f.svc.Answer(context.Background(), "anything?")
	assert.Equal(t, FallbackMessage, answer)
}

func TestAnswer_EmbeddingFailureReturnsFallbackWithoutTurn(t *testing.T) {
	f := newFixture(t, map[string]string{"town.txt": "content"}, echoGenerator())
	f.svc.EnsureIndexing(context.Background())
	f.waitIndexed(t)

	f.embedder.failEmbed.Store(true)
	answer := f.svc.Answer(context.Background(), "anything?")
	assert.Equal(t, FallbackMessage, answer)
	assert.Equal(t, 0, f.log.Len(), "no exchange happened, nothing to record")
}

func TestAnswer_EmptyIndexStillInvokesModel(t *testing.T) {
	var sawPrompt atomic.Bool
	gen := generatorFunc(func(_ context.Context, prompt string) (string, error) {
		sawPrompt.Store(true)
		assert.Contains(t, prompt, NotFoundPhrase)
		return NotFoundPhrase, nil
	})
	// Empty corpus directory: retrieval yields nothing
	f := newFixture(t, nil, gen)

	answer := f.svc.Answer(context.Background(), "anything?")
	assert.True(t, sawPrompt.Load(), "the model is invoked even with empty context")
	assert.Equal(t, NotFoundPhrase, answer)
}

func TestEnsureIndexing_ConcurrentTriggersRunOnce(t *testing.T) {
	f := newFixture(t, map[string]string{"town.txt": "Main Street has three potholes."}, echoGenerator())

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.EnsureIndexing(context.Background())
		}()
	}
	wg.Wait()
	f.waitIndexed(t)

	assert.Equal(t, int64(1), f.embedder.batchCalls.Load(),
		"exactly one indexing run regardless of concurrent triggers")
	size, err := f.idx.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestAnswer_SequentialQuestionsKeepHistoryOrder(t *testing.T) {
	f := newFixture(t, map[string]string{"town.txt": "Main Street has three potholes."}, echoGenerator())

	ctx := context.Background()
	a1 := f.svc.Answer(ctx, "Q1")
	a2 := f.svc.Answer(ctx, "Q2")

	recent := f.log.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "Q1", recent[0].Question)
	assert.Equal(t, a1, recent[0].Answer)
	assert.Equal(t, "Q2", recent[1].Question)
	assert.Equal(t, a2, recent[1].Answer)
}

func TestAnswer_HistoryAppearsInLaterPrompts(t *testing.T) {
	var prompts []string
	var mu sync.Mutex
	gen := generatorFunc(func(_ context.Context, prompt string) (string, error) {
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
		return "ok", nil
	})
	f := newFixture(t, map[string]string{"town.txt": "content"}, gen)

	ctx := context.Background()
	f.svc.Answer(ctx, "first question")
	f.svc.Answer(ctx, "second question")

	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "User: first question")
	assert.Contains(t, prompts[1], "User: first question")
	assert.Contains(t, prompts[1], "Assistant: ok")
}
