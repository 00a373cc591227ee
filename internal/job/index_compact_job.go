package job

import (
	"context"
	"fmt"

	"github.com/AdvitDeepak/local-recall/internal/model"
	"github.com/AdvitDeepak/local-recall/internal/vector"
)

// compactThreshold is the tombstone fraction above which a compaction
// pays for itself.
const compactThreshold = 0.2

type publisher interface {
	Publish(ctx context.Context, kind model.NotificationKind, message string) (int64, error)
}

// IndexCompactJob rebuilds the index arrays once enough deletes have
// accumulated as tombstones.
type IndexCompactJob struct {
	index *vector.Index
	bus   publisher
}

func NewIndexCompactJob(index *vector.Index, bus publisher) *IndexCompactJob {
	return &IndexCompactJob{index: index, bus: bus}
}

func (j *IndexCompactJob) Name() string {
	return "index_compact"
}

func (j *IndexCompactJob) Run(ctx context.Context) error {
	ratio := j.index.TombstoneRatio()
	if ratio < compactThreshold {
		return nil
	}
	j.index.Compact()
	stats := j.index.Stats()
	msg := fmt.Sprintf("index compacted to %d vectors (version %d)", stats.Count, stats.Version)
	_, err := j.bus.Publish(ctx, model.NotificationIndexRebuilt, msg)
	return err
}
