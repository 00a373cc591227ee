package embedcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AdvitDeepak/local-recall/internal/ai"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{calls: map[string]int{}, fail: map[string]error{}}
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[text]++
	if err := e.fail[text]; err != nil {
		return nil, err
	}
	return []float32{1, 2, 3}, nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) []ai.EmbedResult {
	results := make([]ai.EmbedResult, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		results[i] = ai.EmbedResult{Vector: vec, Err: err}
	}
	return results
}

func (e *countingEmbedder) ModelName() string { return "counting" }

func (e *countingEmbedder) Dimension() int { return 3 }

func (e *countingEmbedder) count(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[text]
}

func TestLruEmbedderCachesRepeats(t *testing.T) {
	inner := newCountingEmbedder()
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	ctx := context.Background()

	first, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.count("hello"))

	// cached copies must not alias each other
	second[0] = 42
	third, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	require.Equal(t, float32(1), third[0])
}

func TestLruEmbedderBatchPartitionsHits(t *testing.T) {
	inner := newCountingEmbedder()
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	ctx := context.Background()

	_, err := e.Embed(ctx, "warm")
	require.NoError(t, err)

	inner.fail["broken"] = ai.ErrUnavailable
	results := e.EmbedBatch(ctx, []string{"warm", "cold", "broken"})
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.ErrorIs(t, results[2].Err, ai.ErrUnavailable)

	// warm came from cache, cold was fetched once
	require.Equal(t, 1, inner.count("warm"))
	require.Equal(t, 1, inner.count("cold"))

	// failures are not cached, a retry reaches the inner embedder
	_ = e.EmbedBatch(ctx, []string{"broken"})
	require.Equal(t, 2, inner.count("broken"))
}

func TestWrapDisabledPassesThrough(t *testing.T) {
	inner := newCountingEmbedder()
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 0, time.Minute))
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 16, 0))
}
