package model

// RetrievalCandidate is one scored hit from the vector index. Higher
// score means more relevant. Not persisted.
type RetrievalCandidate struct {
	EntryID int64   `json:"entry_id"`
	Score   float32 `json:"score"`
}

// SearchResult joins a candidate with its entry for the search API.
type SearchResult struct {
	EntryID int64      `json:"id"`
	Text    string     `json:"text"`
	Score   float32    `json:"score"`
	Source  SourceKind `json:"source"`
	Ctime   int64      `json:"ctime"`
}

// StreamEventType discriminates frames on the answer stream.
type StreamEventType string

const (
	StreamEventChunk   StreamEventType = "answer_chunk"
	StreamEventSources StreamEventType = "sources"
	StreamEventDone    StreamEventType = "done"
	StreamEventError   StreamEventType = "error"
)

// StreamEvent is one frame of a streamed answer. Content is set for
// answer_chunk and error frames, Sources only for the sources frame.
// ErrKind is set on error frames so consumers can tell a model outage
// from a bad request.
type StreamEvent struct {
	Type    StreamEventType      `json:"type"`
	Content string               `json:"content,omitempty"`
	Sources []RetrievalCandidate `json:"sources,omitempty"`
	ErrKind string               `json:"err_kind,omitempty"`
}
