package pipeline

// ProgressEvent is the shape shared by every ingest/query progress
// callback (spec.md §4.8): a stage name plus whichever optional fields
// apply to that event kind.
type ProgressEvent struct {
	Stage     string
	Message   string
	Completed int
	Total     int
}

// ChunkProcessed is emitted cumulatively as ingest embeds/stores each
// chunk.
type ChunkProcessed struct {
	Processed int
	Total     int
}

// ChunkFailed is emitted per-chunk on failure; it does not terminate the
// stream (spec.md §4.8).
type ChunkFailed struct {
	ChunkID string
	Err     error
}

// IngestSummary is the terminal event for IngestStream.
type IngestSummary struct {
	TotalChunks     int
	ProcessedChunks int
	FailedChunks    int
}

// IngestEvent is the sum of the three event kinds an ingest stream can
// emit, exactly one populated field per event.
type IngestEvent struct {
	Processed *ChunkProcessed
	Failed    *ChunkFailed
	Done      *IngestSummary
}

// QueryEvent is the sum of token/done events a query stream can emit.
type QueryEvent struct {
	Token string
	Done  bool
}

// ProgressFunc is the optional onProgress callback (spec.md §4.6).
type ProgressFunc func(ProgressEvent)
