// Package rag assembles grounded answers: retrieve what the role may read,
// prompt the model with only that context, and report confidence and
// citations alongside the answer.
package rag

import (
	"context"

	"intranet-ai/internal/contextutil"
	"intranet-ai/internal/retriever"
)

// FallbackAnswer is returned when retrieval yields nothing the role may
// read; the model is never consulted in that case.
const FallbackAnswer = "The requested information is not available in the provided documents."

// GenerationErrorAnswer is returned when the model call fails after a
// successful retrieval. The failure is logged, not surfaced as an error, so
// the caller still gets citations for what was found.
const GenerationErrorAnswer = "An error occurred while generating the response."

// Retriever yields role-checked chunks for a query, most relevant first.
type Retriever interface {
	Retrieve(ctx context.Context, role, query string) ([]retriever.RetrievedChunk, error)
}

// Generator produces a completion for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answer is the assembled response to one question.
type Answer struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Citations  []string `json:"citations"`
}

// Engine wires retrieval and generation into the ask flow.
type Engine struct {
	retriever Retriever
	generator Generator
}

// NewEngine creates an answer engine.
func NewEngine(retriever Retriever, generator Generator) *Engine {
	return &Engine{retriever: retriever, generator: generator}
}

// Ask answers a question with only the context the given role may read.
// Retrieval errors propagate; generation errors do not, they degrade into
// GenerationErrorAnswer.
func (e *Engine) Ask(ctx context.Context, role, question string) (*Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	chunks, err := e.retriever.Retrieve(ctx, role, question)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &Answer{
			Answer:     FallbackAnswer,
			Confidence: 0.0,
			Citations:  []string{},
		}, nil
	}

	answer, err := e.generator.Generate(ctx, BuildPrompt(question, chunks))
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "error", err)
		answer = GenerationErrorAnswer
	}

	return &Answer{
		Answer:     answer,
		Confidence: Confidence(chunks),
		Citations:  Citations(chunks),
	}, nil
}
