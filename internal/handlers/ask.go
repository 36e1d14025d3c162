// Package handlers contains the HTTP handlers for the API surface.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"intranet-ai/internal/contextutil"
	"intranet-ai/internal/rag"
	"intranet-ai/internal/rbac"
	"intranet-ai/internal/vectorstore"
)

// Asker answers a question on behalf of a role.
type Asker interface {
	Ask(ctx context.Context, role, question string) (*rag.Answer, error)
}

// AskHandler handles HTTP requests for grounded question answering.
type AskHandler struct {
	engine Asker
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine Asker) *AskHandler {
	return &AskHandler{engine: engine}
}

// AskRequest is the HTTP request payload for questions.
type AskRequest struct {
	Role     string `json:"role"`
	Question string `json:"question"`
}

// AskResponse is the HTTP response payload: the answer plus the grounding
// metadata.
type AskResponse struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Citations  []string `json:"citations"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Question == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if req.Role == "" {
		logger.WarnContext(ctx, "empty role in request")
		writeError(w, http.StatusBadRequest, "Role is required")
		return
	}

	answer, err := h.engine.Ask(ctx, req.Role, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrInvalidRole):
			logger.WarnContext(ctx, "unknown role", "role", req.Role)
			writeError(w, http.StatusForbidden, "Unknown role: "+req.Role)
		case errors.Is(err, vectorstore.ErrUnavailable):
			logger.ErrorContext(ctx, "vector store unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		default:
			logger.ErrorContext(ctx, "ask failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to process question")
		}
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:     answer.Answer,
		Confidence: answer.Confidence,
		Citations:  answer.Citations,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
