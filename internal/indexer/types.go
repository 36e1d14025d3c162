package indexer

// Chunk is the atomic retrievable unit: one decoded token window of a source
// document plus the RBAC and provenance metadata attached at ingestion time.
type Chunk struct {
	// ID is the stable chunk identifier: "{filename}::chunk_{n}", n from 0.
	ID string
	// Index is the window sequence number within the source file.
	Index int
	// Text is the decoded token window, human-readable.
	Text string
	// SourcePath is the provenance of the chunk, the source base filename.
	SourcePath string
	// Category is the department directory the chunk came from, lowercased.
	Category string
	// AccessibleRoles is the sorted, deduplicated list of roles whose direct
	// category set contains Category. Hierarchy expansion happens at query
	// time, never here.
	AccessibleRoles []string
}

// IngestionStats is the aggregate report of one ingestion run.
type IngestionStats struct {
	// TotalDocuments counts source files that produced at least one chunk.
	TotalDocuments int `json:"total_documents"`
	// TotalChunks counts all emitted chunks.
	TotalChunks int `json:"total_chunks"`
	// ChunksPerCategory holds a counter for every ingested category,
	// including categories that produced zero chunks.
	ChunksPerCategory map[string]int `json:"chunks_per_category"`
}
