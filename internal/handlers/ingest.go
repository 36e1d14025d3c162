package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"intranet-ai/internal/contextutil"
	"intranet-ai/internal/indexer"
	"intranet-ai/internal/rbac"
	"intranet-ai/internal/vectorstore"
)

// Ingester rebuilds the index from the on-disk corpus.
type Ingester interface {
	IngestAll(ctx context.Context) (*indexer.IngestionStats, error)
	IngestForRole(ctx context.Context, role string) (*indexer.IngestionStats, error)
}

// IngestHandler handles HTTP requests to rebuild the index.
type IngestHandler struct {
	pipeline Ingester
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(pipeline Ingester) *IngestHandler {
	return &IngestHandler{pipeline: pipeline}
}

// IngestRequest is the HTTP request payload for ingestion. An empty role
// ingests the whole corpus.
type IngestRequest struct {
	Role string `json:"role,omitempty"`
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	// An empty body means a full ingestion.
	var req IngestRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			logger.WarnContext(ctx, "invalid request body", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	var (
		stats *indexer.IngestionStats
		err   error
	)
	if req.Role == "" {
		stats, err = h.pipeline.IngestAll(ctx)
	} else {
		stats, err = h.pipeline.IngestForRole(ctx, req.Role)
	}
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrInvalidRole):
			logger.WarnContext(ctx, "unknown role", "role", req.Role)
			writeError(w, http.StatusForbidden, "Unknown role: "+req.Role)
		case errors.Is(err, indexer.ErrMissingCategories):
			logger.ErrorContext(ctx, "corpus incomplete", "error", err)
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, vectorstore.ErrUnavailable):
			logger.ErrorContext(ctx, "vector store unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		default:
			logger.ErrorContext(ctx, "ingestion failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Ingestion failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
