package rag

import (
	"fmt"
	"strings"

	"intranet-ai/internal/retriever"
)

const instructions = `You are an internal company assistant.
Use the provided context to answer the user's question.
If partial information is available, summarize what is present.
Be concise. Provide a summary if the answer is long.
Do NOT refuse to answer if the information is incomplete.
Do NOT add external knowledge.
Answer in clear bullet points.`

// BuildPrompt assembles the grounded prompt: fixed instructions, one
// source-attributed block per chunk in relevance order, then the question.
func BuildPrompt(question string, chunks []retriever.RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		blocks = append(blocks, fmt.Sprintf("[Source: %s]\n%s", chunk.SourcePath, strings.TrimSpace(chunk.Text)))
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n### Context Data:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\n### User Question:\n")
	b.WriteString(question)
	b.WriteString("\n\n### Answer:\n")
	return b.String()
}

// Citations lists the distinct source files backing the chunks, first
// occurrence order preserved so the most relevant source leads.
func Citations(chunks []retriever.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	citations := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.SourcePath]; ok {
			continue
		}
		seen[chunk.SourcePath] = struct{}{}
		citations = append(citations, chunk.SourcePath)
	}
	return citations
}

// Confidence reduces the similarity scores of the answer's supporting
// chunks to one number: the mean, clamped to [0, 1]. No chunks means no
// grounds for confidence at all.
func Confidence(chunks []retriever.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0.0
	}
	var sum float64
	for _, chunk := range chunks {
		sum += float64(chunk.Score)
	}
	mean := sum / float64(len(chunks))
	if mean < 0 {
		return 0.0
	}
	if mean > 1 {
		return 1.0
	}
	return mean
}
