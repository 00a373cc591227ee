package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/pipeline"
	"github.com/AdvitDeepak/local-recall/internal/repo"
)

// RequeueFailedJob gives failed entries another shot, a bounded number
// per run so a persistently broken backend cannot spin the pipeline.
type RequeueFailedJob struct {
	entries *repo.EntryRepo
	pipe    *pipeline.Pipeline
	batch   int
}

func NewRequeueFailedJob(entries *repo.EntryRepo, pipe *pipeline.Pipeline, batch int) *RequeueFailedJob {
	return &RequeueFailedJob{entries: entries, pipe: pipe, batch: batch}
}

func (j *RequeueFailedJob) Name() string {
	return "requeue_failed"
}

func (j *RequeueFailedJob) Run(ctx context.Context) error {
	batch := j.batch
	if batch <= 0 {
		batch = 100
	}
	ids, err := j.entries.RequeueFailed(ctx, batch)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := j.pipe.Enqueue(ctx, id); err != nil {
			// rows are pending again, the poll tick will find them
			break
		}
	}
	logutil.GetLogger(ctx).Info("requeued failed entries", zap.Int("count", len(ids)))
	return nil
}
