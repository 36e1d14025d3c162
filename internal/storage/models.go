package storage

// ChunkRecord is the persisted text side of an indexed chunk. The vector
// lives in Qdrant under PointID; the record here is what the retriever
// resolves a search hit back into.
type ChunkRecord struct {
	PointID         string // Qdrant point ID (deterministic UUID of ChunkID)
	ChunkID         string // Stable ID: "{filename}::chunk_{n}"
	SourcePath      string // Provenance, the source base filename
	Category        string // Department directory the chunk came from
	AccessibleRoles string // Comma-joined, sorted role list
	Text            string // Decoded token-window text
}
