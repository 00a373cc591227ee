// Package pipeline moves entries from pending to embedded. A bounded
// intake queue gives producers backpressure; a single worker drains
// pending rows in batches, embeds them and commits each item on its
// own so one bad entry never blocks the rest of a batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/ai"
	"github.com/AdvitDeepak/local-recall/internal/config"
	"github.com/AdvitDeepak/local-recall/internal/model"
	appErr "github.com/AdvitDeepak/local-recall/internal/pkg/errors"
)

type EntryStore interface {
	ListPending(ctx context.Context, limit int) ([]model.Entry, error)
	UpdateStatusFrom(ctx context.Context, id int64, from, to model.EmbedStatus) (bool, error)
}

type VectorStore interface {
	Save(ctx context.Context, rec *model.VectorRecord) error
	LoadAll(ctx context.Context) ([]model.VectorRecord, error)
}

type Index interface {
	Insert(entryID int64, vec []float32) error
}

type Publisher interface {
	Publish(ctx context.Context, kind model.NotificationKind, message string) (int64, error)
}

type Pipeline struct {
	entries  EntryStore
	vectors  VectorStore
	index    Index
	bus      Publisher
	embedder ai.IEmbedder

	batchSize    int
	maxAttempts  int
	backoffBase  time.Duration
	pollInterval time.Duration
	intake       chan int64
}

func New(entries EntryStore, vectors VectorStore, index Index, bus Publisher,
	embedder ai.IEmbedder, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		entries:      entries,
		vectors:      vectors,
		index:        index,
		bus:          bus,
		embedder:     embedder,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		backoffBase:  time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		pollInterval: time.Duration(cfg.PollIntervalSec) * time.Second,
		intake:       make(chan int64, cfg.QueueDepth),
	}
}

// Enqueue wakes the worker for a freshly created pending entry. It
// blocks when the intake queue is full, so a burst of captures slows
// the producer instead of growing memory without bound.
func (p *Pipeline) Enqueue(ctx context.Context, entryID int64) error {
	select {
	case p.intake <- entryID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hydrate rebuilds the in-memory index from the persisted vector
// records. Called once at startup, before the worker runs.
func (p *Pipeline) Hydrate(ctx context.Context) (int, error) {
	records, err := p.vectors.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load vector records: %w", err)
	}
	loaded := 0
	for _, rec := range records {
		if err := p.index.Insert(rec.EntryID, rec.Embedding); err != nil {
			logutil.GetLogger(ctx).Warn("skip vector record on hydrate",
				zap.Int64("entry_id", rec.EntryID), zap.Int("dim", rec.Dim), zap.Error(err))
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Run is the worker loop. It drains pending entries whenever an
// enqueue arrives and on a slow poll tick, which also catches rows
// requeued behind its back. Returns when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("module", "pipeline"))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.intake:
			p.drainIntake()
		case <-ticker.C:
		}
		for {
			n, err := p.processBatch(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Error("process batch failed", zap.Error(err))
				break
			}
			if n == 0 {
				break
			}
		}
	}
}

// drainIntake empties queued wakeups. The IDs themselves are not
// needed, the pending rows are picked up from the database.
func (p *Pipeline) drainIntake() {
	for {
		select {
		case <-p.intake:
		default:
			return
		}
	}
}

// processBatch embeds one batch of pending entries and returns how
// many entries it picked up.
func (p *Pipeline) processBatch(ctx context.Context) (int, error) {
	batch, err := p.entries.ListPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("module", "pipeline"))

	// pending holds items still awaiting a usable vector. Each retry
	// round re-embeds only what is left.
	pending := batch
	var embedded int
	var fastFailed int
	var fastErr error
	backoff := retry.WithJitter(p.backoffBase/2, retry.NewExponential(p.backoffBase))
	retryErr := retry.Do(ctx, retry.WithMaxRetries(uint64(p.maxAttempts-1), backoff), func(ctx context.Context) error {
		texts := make([]string, len(pending))
		for i, entry := range pending {
			texts[i] = entry.Text
		}
		results := p.embedder.EmbedBatch(ctx, texts)
		var remaining []model.Entry
		var lastErr error
		for i, res := range results {
			entry := pending[i]
			if res.Err != nil {
				if retryable(res.Err) {
					remaining = append(remaining, entry)
					lastErr = res.Err
					continue
				}
				// malformed response for this item, no point retrying
				p.markFailed(ctx, entry.ID, res.Err)
				fastFailed++
				fastErr = res.Err
				continue
			}
			if err := p.commit(ctx, entry, res.Vector); err != nil {
				if errors.Is(err, appErr.ErrNotFound) {
					// deleted while in flight, drop it
					continue
				}
				logger.Error("commit embedded entry failed", zap.Int64("entry_id", entry.ID), zap.Error(err))
				remaining = append(remaining, entry)
				lastErr = err
				continue
			}
			embedded++
		}
		pending = remaining
		if len(remaining) > 0 {
			return retry.RetryableError(lastErr)
		}
		return nil
	})

	if err := ctx.Err(); err != nil {
		// shutdown mid-batch, leave the rest pending for the next run
		return len(batch), err
	}
	for _, entry := range pending {
		p.markFailed(ctx, entry.ID, retryErr)
	}
	if failed := fastFailed + len(pending); failed > 0 {
		cause := retryErr
		if cause == nil {
			cause = fastErr
		}
		msg := fmt.Sprintf("embedding failed for %d of %d entries: %v", failed, len(batch), cause)
		if _, err := p.bus.Publish(ctx, model.NotificationEmbedFailed, msg); err != nil {
			logger.Warn("publish failure notification failed", zap.Error(err))
		}
	}
	if embedded > 0 {
		msg := fmt.Sprintf("embedded %d entries", embedded)
		if _, err := p.bus.Publish(ctx, model.NotificationEmbedProgress, msg); err != nil {
			logger.Warn("publish progress notification failed", zap.Error(err))
		}
	}
	logger.Debug("batch done",
		zap.Int("picked", len(batch)), zap.Int("embedded", embedded),
		zap.Int("failed", fastFailed+len(pending)))
	return len(batch), nil
}

// commit persists one successfully embedded entry: vector record
// first, then the index slot, then the status flip. A crash in
// between leaves the row pending and the next run redoes the work
// with identical results.
func (p *Pipeline) commit(ctx context.Context, entry model.Entry, vec []float32) error {
	rec := &model.VectorRecord{
		EntryID:   entry.ID,
		Embedding: vec,
		ModelName: p.embedder.ModelName(),
		Dim:       len(vec),
		Ctime:     time.Now().UnixMilli(),
	}
	if err := p.vectors.Save(ctx, rec); err != nil {
		return fmt.Errorf("save vector record: %w", err)
	}
	if err := p.index.Insert(entry.ID, vec); err != nil {
		return fmt.Errorf("index insert: %w", err)
	}
	ok, err := p.entries.UpdateStatusFrom(ctx, entry.ID, model.EmbedStatusPending, model.EmbedStatusEmbedded)
	if err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	if !ok {
		// status moved on without us, nothing left to do
		logutil.GetLogger(ctx).Warn("entry no longer pending on commit", zap.Int64("entry_id", entry.ID))
	}
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, id int64, cause error) {
	ok, err := p.entries.UpdateStatusFrom(ctx, id, model.EmbedStatusPending, model.EmbedStatusFailed)
	if err != nil {
		logutil.GetLogger(ctx).Error("mark failed", zap.Int64("entry_id", id), zap.Error(err))
		return
	}
	if ok {
		logutil.GetLogger(ctx).Warn("entry marked failed", zap.Int64("entry_id", id), zap.Error(cause))
	}
}

// retryable reports whether a call is worth retrying. Timeouts and
// unreachable backends are transient; a response with the wrong shape
// will not improve on a second try.
func retryable(err error) bool {
	return errors.Is(err, ai.ErrUnavailable) || errors.Is(err, ai.ErrTimeout)
}
