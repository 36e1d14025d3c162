package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"intranet-ai/internal/contextutil"
	"intranet-ai/internal/corpus"
	"intranet-ai/internal/rbac"
	"intranet-ai/internal/storage"
	"intranet-ai/internal/vectorstore"
)

// ErrMissingCategories is returned by a full ingestion when the on-disk
// corpus lacks a category the policy expects. The persisted index is left
// untouched.
var ErrMissingCategories = errors.New("corpus is missing expected categories")

// embedBatchSize bounds one embeddings request during ingestion.
const embedBatchSize = 64

// Embedder converts chunk texts into dense vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline orchestrates ingestion: resolve categories through the access
// policy, chunk the corpus, embed, and atomically rebuild the vector index
// and the chunk text store.
//
// Ingestion is a single coarse batch operation; concurrent ingestions
// against the same index are not supported and must be serialized by the
// caller. Query-time reads stay safe throughout because both stores swap
// atomically.
type Pipeline struct {
	policy      *rbac.Policy
	scanner     *corpus.Scanner
	chunker     *Chunker
	embedder    Embedder
	chunkStore  storage.ChunkStore
	vectorStore vectorstore.VectorStore
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	policy *rbac.Policy,
	scanner *corpus.Scanner,
	chunker *Chunker,
	embedder Embedder,
	chunkStore storage.ChunkStore,
	vectorStore vectorstore.VectorStore,
) *Pipeline {
	return &Pipeline{
		policy:      policy,
		scanner:     scanner,
		chunker:     chunker,
		embedder:    embedder,
		chunkStore:  chunkStore,
		vectorStore: vectorStore,
	}
}

// IngestAll ingests every category the policy knows about. If any expected
// category directory is absent on disk the run aborts with
// ErrMissingCategories before anything is rebuilt.
func (p *Pipeline) IngestAll(ctx context.Context) (*IngestionStats, error) {
	expected := p.policy.Categories()

	present, err := p.scanner.Categories()
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus categories: %w", err)
	}

	presentSet := make(map[string]struct{}, len(present))
	for _, c := range present {
		presentSet[c] = struct{}{}
	}

	var missing []string
	for _, c := range expected {
		if _, ok := presentSet[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingCategories, strings.Join(missing, ", "))
	}

	return p.ingest(ctx, expected)
}

// IngestForRole ingests only the categories the given role may read.
// Categories absent on disk are silently omitted.
func (p *Pipeline) IngestForRole(ctx context.Context, role string) (*IngestionStats, error) {
	present, err := p.scanner.Categories()
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus categories: %w", err)
	}

	categories, err := p.policy.ResolveCategories(role, present)
	if err != nil {
		return nil, err
	}

	return p.ingest(ctx, categories)
}

// ingest chunks the given categories, embeds everything, and swaps both the
// vector index and the chunk text store to the new corpus.
func (p *Pipeline) ingest(ctx context.Context, categories []string) (*IngestionStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "ingestion started", "categories", categories)

	result, err := p.chunker.ChunkCategories(ctx, p.scanner, categories)
	if err != nil {
		return nil, fmt.Errorf("chunking failed: %w", err)
	}

	points := make([]vectorstore.Point, 0, len(result.Chunks))
	records := make([]*storage.ChunkRecord, 0, len(result.Chunks))

	for start := 0; start < len(result.Chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(result.Chunks) {
			end = len(result.Chunks)
		}
		batch := result.Chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddings, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
		}

		for i, chunk := range batch {
			pointID := PointID(chunk.ID)
			roles := strings.Join(chunk.AccessibleRoles, ",")

			records = append(records, &storage.ChunkRecord{
				PointID:         pointID,
				ChunkID:         chunk.ID,
				SourcePath:      chunk.SourcePath,
				Category:        chunk.Category,
				AccessibleRoles: roles,
				Text:            chunk.Text,
			})

			points = append(points, vectorstore.Point{
				ID:  pointID,
				Vec: embeddings[i],
				Meta: map[string]any{
					"chunk_id":         chunk.ID,
					"source_path":      chunk.SourcePath,
					"category":         chunk.Category,
					"accessible_roles": roles,
					"chunk_index":      chunk.Index,
				},
			})
		}
	}

	// The vector index swaps first. Until the text store swap below lands,
	// a concurrent reader may see new points it cannot resolve yet; the
	// retriever skips those instead of failing.
	if err := p.vectorStore.Rebuild(ctx, points); err != nil {
		return nil, fmt.Errorf("vector index rebuild failed: %w", err)
	}

	if err := p.chunkStore.ReplaceAll(ctx, records); err != nil {
		return nil, fmt.Errorf("chunk store replacement failed: %w", err)
	}

	stats := &IngestionStats{
		TotalDocuments:    result.TotalDocuments,
		TotalChunks:       result.TotalChunks,
		ChunksPerCategory: result.ChunksPerCategory,
	}

	logger.InfoContext(ctx, "ingestion completed",
		"documents", stats.TotalDocuments,
		"chunks", stats.TotalChunks,
		"categories", len(stats.ChunksPerCategory),
	)
	return stats, nil
}

// PointID derives the deterministic vector point ID for a chunk ID, so
// re-ingesting the same corpus produces the same points.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}
