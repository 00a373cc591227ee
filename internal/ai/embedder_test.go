package ai

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedEmbedProvider struct {
	mu   sync.Mutex
	dim  int
	fail map[string]error
	slow map[string]bool
}

func (p *scriptedEmbedProvider) Name() string { return "scripted" }

func (p *scriptedEmbedProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	p.mu.Lock()
	err := p.fail[text]
	slow := p.slow[text]
	p.mu.Unlock()
	if slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return make([]float32, p.dim), nil
}

func TestEmbedderDimensionCheck(t *testing.T) {
	provider := &scriptedEmbedProvider{dim: 2}
	e := NewEmbedder(provider, "m", 3, time.Second)

	_, err := e.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEmbedderTimeoutClassified(t *testing.T) {
	provider := &scriptedEmbedProvider{dim: 3, slow: map[string]bool{"slow": true}}
	e := NewEmbedder(provider, "m", 3, 20*time.Millisecond)

	_, err := e.Embed(context.Background(), "slow")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestEmbedderUnreachableClassified(t *testing.T) {
	cause := &url.Error{Op: "Post", URL: "http://localhost:11434", Err: errors.New("connection refused")}
	provider := &scriptedEmbedProvider{dim: 3, fail: map[string]error{"x": cause}}
	e := NewEmbedder(provider, "m", 3, time.Second)

	_, err := e.Embed(context.Background(), "x")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbedBatchKeepsOrderWithMixedResults(t *testing.T) {
	cause := &url.Error{Op: "Post", URL: "http://localhost:11434", Err: errors.New("connection refused")}
	provider := &scriptedEmbedProvider{dim: 3, fail: map[string]error{"bad": cause}}
	e := NewEmbedder(provider, "m", 3, time.Second)

	results := e.EmbedBatch(context.Background(), []string{"a", "bad", "b", "c", "d", "e"})
	require.Len(t, results, 6)
	for i, res := range results {
		if i == 1 {
			require.ErrorIs(t, res.Err, ErrUnavailable)
			require.Nil(t, res.Vector)
			continue
		}
		require.NoError(t, res.Err)
		require.Len(t, res.Vector, 3)
	}
}

func TestEmbedderAccessors(t *testing.T) {
	e := NewEmbedder(&scriptedEmbedProvider{dim: 3}, "embed-model", 3, time.Second)
	require.Equal(t, "embed-model", e.ModelName())
	require.Equal(t, 3, e.Dimension())
}
