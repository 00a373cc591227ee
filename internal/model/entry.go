package model

// SourceKind identifies how an entry was captured.
type SourceKind string

const (
	SourceClipboard  SourceKind = "clipboard"
	SourceScreenshot SourceKind = "screenshot"
	SourceUpload     SourceKind = "upload"
)

func (s SourceKind) Valid() bool {
	switch s {
	case SourceClipboard, SourceScreenshot, SourceUpload:
		return true
	}
	return false
}

// EmbedStatus tracks an entry through the embedding pipeline.
// Transitions are monotonic: pending -> embedded | failed.
type EmbedStatus string

const (
	EmbedStatusPending  EmbedStatus = "pending"
	EmbedStatusEmbedded EmbedStatus = "embedded"
	EmbedStatusFailed   EmbedStatus = "failed"
)

type Entry struct {
	ID          int64       `json:"id"`
	Text        string      `json:"text"`
	Source      SourceKind  `json:"source"`
	Tags        []string    `json:"tags"`
	EmbedStatus EmbedStatus `json:"embed_status"`
	Ctime       int64       `json:"ctime"`
}

// EntryFilter narrows entry listings. Zero values mean "no filter".
type EntryFilter struct {
	Source SourceKind
	Tag    string
	Limit  int
}

// VectorRecord is the durable form of one entry's embedding. The
// in-memory index is rebuilt from these on startup.
type VectorRecord struct {
	EntryID   int64
	Embedding []float32
	ModelName string
	Dim       int
	Ctime     int64
}

// EntryCounts is the read-only stats view over the entry table.
type EntryCounts struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Embedded int64 `json:"embedded"`
	Failed   int64 `json:"failed"`
}
