package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks intranet-ai/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ChunkStore defines the interface for chunk text storage.
type ChunkStore interface {
	// ReplaceAll atomically swaps the full chunk set in one transaction:
	// readers see either the old corpus or the new one, never a mix.
	ReplaceAll(ctx context.Context, chunks []*ChunkRecord) error
	// GetByPointID resolves a vector search hit to its stored chunk.
	// Returns ErrNotFound if the point is unknown.
	GetByPointID(ctx context.Context, pointID string) (*ChunkRecord, error)
	// CountByCategory returns chunk counts per category.
	CountByCategory(ctx context.Context) (map[string]int, error)
}

// ChunkRepo provides SQLite-backed chunk storage.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceAll deletes every existing chunk and inserts the new set in a
// single transaction.
func (r *ChunkRepo) ReplaceAll(ctx context.Context, chunks []*ChunkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (point_id, chunk_id, source_path, category, accessible_roles, text) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
			chunk.PointID, chunk.ChunkID, chunk.SourcePath, chunk.Category, chunk.AccessibleRoles, chunk.Text,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk replacement: %w", err)
	}
	return nil
}

// GetByPointID gets a chunk by its Qdrant point ID.
func (r *ChunkRepo) GetByPointID(ctx context.Context, pointID string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT point_id, chunk_id, source_path, category, accessible_roles, text FROM chunks WHERE point_id = ?",
		pointID,
	).Scan(&chunk.PointID, &chunk.ChunkID, &chunk.SourcePath, &chunk.Category, &chunk.AccessibleRoles, &chunk.Text)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk by point ID: %w", err)
	}
	return &chunk, nil
}

// CountByCategory returns the number of stored chunks per category.
func (r *ChunkRepo) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM chunks GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}
