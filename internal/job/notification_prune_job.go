package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/bus"
)

// NotificationPruneJob keeps the notification log bounded.
type NotificationPruneJob struct {
	bus  *bus.Bus
	keep int
}

func NewNotificationPruneJob(bus *bus.Bus, keep int) *NotificationPruneJob {
	return &NotificationPruneJob{bus: bus, keep: keep}
}

func (j *NotificationPruneJob) Name() string {
	return "notification_prune"
}

func (j *NotificationPruneJob) Run(ctx context.Context) error {
	keep := j.keep
	if keep <= 0 {
		keep = 1000
	}
	removed, err := j.bus.Prune(ctx, keep)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("pruned notifications", zap.Int64("removed", removed))
	}
	return nil
}
