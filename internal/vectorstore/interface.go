package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks intranet-ai/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the persisted index is missing or a
// rebuild is in flight. Callers treat it as retryable.
var ErrUnavailable = errors.New("vector store unavailable")

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
// Score is cosine similarity: higher means more relevant, and results are
// returned in descending score order.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for the external vector index.
type VectorStore interface {
	// Rebuild replaces the entire persisted index with the given points.
	// The swap is atomic with respect to Search: concurrent readers see the
	// old index until the new one is complete, then the new one.
	Rebuild(ctx context.Context, points []Point) error

	// Search returns the top results for the query vector in descending
	// relevance order. Returns ErrUnavailable if no index has been built.
	Search(ctx context.Context, query []float32, limit int) ([]SearchResult, error)

	// Ready reports whether a queryable index exists. Returns ErrUnavailable
	// when it does not.
	Ready(ctx context.Context) error
}
