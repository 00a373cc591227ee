package ai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const batchConcurrency = 4

// IEmbedder binds an embed provider to a model name, an expected
// output dimension and a per-call deadline.
type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) []EmbedResult
	ModelName() string
	Dimension() int
}

// EmbedResult is the outcome for one item of a batch. Exactly one of
// Vector or Err is set.
type EmbedResult struct {
	Vector []float32
	Err    error
}

type embedder struct {
	provider IEmbedProvider
	model    string
	dim      int
	timeout  time.Duration
}

func NewEmbedder(p IEmbedProvider, model string, dim int, timeout time.Duration) IEmbedder {
	return &embedder{provider: p, model: model, dim: dim, timeout: timeout}
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vec, err := e.provider.Embed(ctx, e.model, text)
	if err != nil {
		return nil, classifyCallError(err)
	}
	if len(vec) != e.dim {
		return nil, fmt.Errorf("%w: embedding dimension %d, expected %d", ErrInvalidResponse, len(vec), e.dim)
	}
	return vec, nil
}

// EmbedBatch embeds each text with its own deadline and reports
// per-item outcomes, order-preserving, same length as the input.
// Items run concurrently with a small cap so a slow model call does
// not stall the whole batch.
func (e *embedder) EmbedBatch(ctx context.Context, texts []string) []EmbedResult {
	results := make([]EmbedResult, len(texts))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = EmbedResult{Err: classifyCallError(err)}
				return nil
			}
			vec, err := e.Embed(ctx, text)
			if err != nil {
				results[i] = EmbedResult{Err: err}
				return nil
			}
			results[i] = EmbedResult{Vector: vec}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *embedder) ModelName() string {
	return e.model
}

func (e *embedder) Dimension() int {
	return e.dim
}
