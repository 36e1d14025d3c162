package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"intranet-ai/internal/rbac"
	"intranet-ai/internal/retriever"
)

type fakeRetriever struct {
	chunks []retriever.RetrievedChunk
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, _ string) ([]retriever.RetrievedChunk, error) {
	return f.chunks, f.err
}

type fakeGenerator struct {
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.answer, f.err
}

func chunk(source string, score float32) retriever.RetrievedChunk {
	return retriever.RetrievedChunk{
		SourcePath: source,
		ChunkID:    source + "::chunk_0",
		Text:       "content from " + source,
		Score:      score,
	}
}

func TestEngine_Ask(t *testing.T) {
	r := &fakeRetriever{chunks: []retriever.RetrievedChunk{
		chunk("budget.txt", 0.75),
		chunk("forecast.txt", 0.25),
	}}
	g := &fakeGenerator{answer: "- the budget is approved"}
	engine := NewEngine(r, g)

	answer, err := engine.Ask(context.Background(), "finance", "what is the budget status")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.Answer != "- the budget is approved" {
		t.Errorf("answer = %q", answer.Answer)
	}
	if answer.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", answer.Confidence)
	}
	wantCitations := []string{"budget.txt", "forecast.txt"}
	if len(answer.Citations) != 2 || answer.Citations[0] != wantCitations[0] || answer.Citations[1] != wantCitations[1] {
		t.Errorf("citations = %v, want %v", answer.Citations, wantCitations)
	}

	for _, want := range []string{
		"[Source: budget.txt]",
		"[Source: forecast.txt]",
		"### User Question:\nwhat is the budget status",
		"Do NOT add external knowledge.",
	} {
		if !strings.Contains(g.lastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, g.lastPrompt)
		}
	}
}

func TestEngine_Ask_EmptyRetrievalFallsBack(t *testing.T) {
	g := &fakeGenerator{answer: "should never be used"}
	engine := NewEngine(&fakeRetriever{}, g)

	answer, err := engine.Ask(context.Background(), "employees", "what are the executive salaries")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.Answer != FallbackAnswer {
		t.Errorf("answer = %q, want fallback", answer.Answer)
	}
	if answer.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", answer.Confidence)
	}
	if answer.Citations == nil || len(answer.Citations) != 0 {
		t.Errorf("citations = %v, want empty non-nil slice", answer.Citations)
	}
	if g.calls != 0 {
		t.Errorf("generator called %d times on empty retrieval, want 0", g.calls)
	}
}

func TestEngine_Ask_GenerationFailureDegrades(t *testing.T) {
	r := &fakeRetriever{chunks: []retriever.RetrievedChunk{chunk("doc.txt", 0.6)}}
	g := &fakeGenerator{err: fmt.Errorf("model backend gone")}
	engine := NewEngine(r, g)

	answer, err := engine.Ask(context.Background(), "employees", "anything")
	if err != nil {
		t.Fatalf("Ask() error = %v, generation failure must not propagate", err)
	}

	if answer.Answer != GenerationErrorAnswer {
		t.Errorf("answer = %q, want generation error message", answer.Answer)
	}
	// Citations and confidence still reflect what was retrieved.
	if len(answer.Citations) != 1 || answer.Citations[0] != "doc.txt" {
		t.Errorf("citations = %v, want [doc.txt]", answer.Citations)
	}
	if answer.Confidence == 0.0 {
		t.Error("confidence zeroed out by generation failure")
	}
}

func TestEngine_Ask_RetrievalErrorPropagates(t *testing.T) {
	engine := NewEngine(&fakeRetriever{err: rbac.ErrInvalidRole}, &fakeGenerator{})

	_, err := engine.Ask(context.Background(), "contractor", "anything")
	if !errors.Is(err, rbac.ErrInvalidRole) {
		t.Errorf("Ask() error = %v, want ErrInvalidRole", err)
	}
}

func TestCitations_DedupPreservesOrder(t *testing.T) {
	chunks := []retriever.RetrievedChunk{
		chunk("b.txt", 0.9),
		chunk("a.txt", 0.8),
		chunk("b.txt", 0.7),
		chunk("c.txt", 0.6),
	}

	got := Citations(chunks)
	want := []string{"b.txt", "a.txt", "c.txt"}
	if len(got) != len(want) {
		t.Fatalf("Citations() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("citation %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		want   float64
	}{
		{"empty", nil, 0.0},
		{"single", []float32{0.5}, 0.5},
		{"mean", []float32{0.25, 0.75}, 0.5},
		{"clamped high", []float32{1.5, 1.5}, 1.0},
		{"clamped low", []float32{-0.5, -0.5}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := make([]retriever.RetrievedChunk, len(tt.scores))
			for i, score := range tt.scores {
				chunks[i] = chunk(fmt.Sprintf("doc%d.txt", i), score)
			}
			if got := Confidence(chunks); got != tt.want {
				t.Errorf("Confidence() = %v, want %v", got, tt.want)
			}
		})
	}
}
