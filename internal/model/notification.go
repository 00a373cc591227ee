package model

// NotificationKind classifies bus events for the dashboard poller.
type NotificationKind string

const (
	NotificationEmbedProgress NotificationKind = "embed_progress"
	NotificationEmbedFailed   NotificationKind = "embed_failed"
	NotificationIndexRebuilt  NotificationKind = "index_rebuilt"
	NotificationCapture       NotificationKind = "capture"
)

type Notification struct {
	ID      int64            `json:"id"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Ctime   int64            `json:"ctime"`
	Read    bool             `json:"read"`
}
