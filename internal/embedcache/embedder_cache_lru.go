package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/ai"
)

// WrapLruCacheToEmbedder memoizes embeddings by content hash so
// repeated captures of the same text skip the model call.
func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cacheKey := buildCacheKey(l.next.ModelName(), text)
	if cached, ok := l.cache.Get(cacheKey); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("model", l.next.ModelName()))
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(cacheKey, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) EmbedBatch(ctx context.Context, texts []string) []ai.EmbedResult {
	results := make([]ai.EmbedResult, len(texts))
	misses := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		cacheKey := buildCacheKey(l.next.ModelName(), text)
		if cached, ok := l.cache.Get(cacheKey); ok {
			results[i] = ai.EmbedResult{Vector: cloneEmbedding(cached)}
			continue
		}
		misses = append(misses, i)
		missTexts = append(missTexts, text)
	}
	if len(misses) == 0 {
		return results
	}
	fetched := l.next.EmbedBatch(ctx, missTexts)
	for j, idx := range misses {
		res := fetched[j]
		if res.Err == nil {
			l.cache.Add(buildCacheKey(l.next.ModelName(), missTexts[j]), cloneEmbedding(res.Vector))
		}
		results[idx] = res
	}
	return results
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func (l *lruEmbedder) Dimension() int {
	return l.next.Dimension()
}

func buildCacheKey(modelName, text string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	return "embed:" + modelName + ":" + hex.EncodeToString(hash[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
