// Package indexer turns the on-disk corpus into RBAC-tagged chunks and
// loads them into the vector index and the chunk text store.
package indexer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"intranet-ai/internal/contextutil"
	"intranet-ai/internal/corpus"
	"intranet-ai/internal/rbac"
)

const (
	// MaxTokens is the chunk window size, matched to the embedding model's
	// input limit so no window is truncated at embedding time.
	MaxTokens = 256
	// Overlap is how many tokens consecutive windows share, so sentences
	// split at a window boundary stay retrievable.
	Overlap = 40
)

// Tokenizer is the encode/decode pair supplied by the embedding service.
// Both directions must be deterministic for the same model version: chunk
// text and dedup hashes are derived from decoded windows.
type Tokenizer interface {
	Tokenize(ctx context.Context, text string) ([]int32, error)
	Detokenize(ctx context.Context, tokens []int32) (string, error)
}

var (
	structuralRunes = regexp.MustCompile(`[-_]{3,}`)
	dashSeparators  = regexp.MustCompile(`(?:-\s*){5,}`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// NormalizeContent collapses structural punctuation runs and whitespace runs
// to single spaces and trims the ends, so windows are spent on content.
func NormalizeContent(text string) string {
	text = structuralRunes.ReplaceAllString(text, " ")
	text = dashSeparators.ReplaceAllString(text, " ")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Chunker splits corpus documents into overlapping token windows and tags
// each window with RBAC and provenance metadata.
type Chunker struct {
	tokenizer Tokenizer
	readers   *corpus.ReaderRegistry
	policy    *rbac.Policy
	maxTokens int
	overlap   int
}

// NewChunker creates a chunker with the default window constants.
func NewChunker(tokenizer Tokenizer, readers *corpus.ReaderRegistry, policy *rbac.Policy) *Chunker {
	return &Chunker{
		tokenizer: tokenizer,
		readers:   readers,
		policy:    policy,
		maxTokens: MaxTokens,
		overlap:   Overlap,
	}
}

// ChunkResult is the output of chunking a set of category directories.
type ChunkResult struct {
	Chunks            []Chunk
	TotalDocuments    int
	TotalChunks       int
	ChunksPerCategory map[string]int
}

// ChunkCategories scans the given categories and chunks every supported file.
// Per-file read failures and files that normalize to empty content are
// skipped, never fatal; tokenizer failures abort, since a broken tokenizer
// would silently produce a defective index.
func (c *Chunker) ChunkCategories(ctx context.Context, scanner *corpus.Scanner, categories []string) (*ChunkResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	result := &ChunkResult{
		ChunksPerCategory: make(map[string]int, len(categories)),
	}
	// Every requested category gets a counter, even if it yields nothing.
	for _, category := range categories {
		result.ChunksPerCategory[strings.ToLower(category)] = 0
	}

	files, err := scanner.Scan(ctx, categories)
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}

	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunks, err := c.ChunkFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			logger.DebugContext(ctx, "file produced no chunks", "file", file.AbsPath)
			continue
		}

		result.Chunks = append(result.Chunks, chunks...)
		result.TotalDocuments++
		result.TotalChunks += len(chunks)
		result.ChunksPerCategory[file.Category] += len(chunks)
	}

	return result, nil
}

// ChunkFile chunks a single corpus file into overlapping token windows.
// Returns no chunks and no error when the file is unreadable or empty after
// normalization.
func (c *Chunker) ChunkFile(ctx context.Context, file corpus.ScannedFile) ([]Chunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	raw, err := c.readers.Read(file.AbsPath)
	if err != nil {
		logger.WarnContext(ctx, "skipping unreadable file", "file", file.AbsPath, "error", err)
		return nil, nil
	}

	text := NormalizeContent(raw)
	if text == "" {
		return nil, nil
	}

	// The whole document is tokenized at once; windowing below is the only
	// place the text gets cut.
	tokens, err := c.tokenizer.Tokenize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize %s: %w", file.AbsPath, err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	roles := c.policy.RolesForCategory(file.Category)

	step := c.maxTokens - c.overlap
	var chunks []Chunk
	for start, idx := 0, 0; start < len(tokens); start, idx = start+step, idx+1 {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		window, err := c.tokenizer.Detokenize(ctx, tokens[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to decode window %d of %s: %w", idx, file.AbsPath, err)
		}

		chunks = append(chunks, Chunk{
			ID:              fmt.Sprintf("%s::chunk_%d", file.Name, idx),
			Index:           idx,
			Text:            window,
			SourcePath:      file.Name,
			Category:        file.Category,
			AccessibleRoles: roles,
		})

		// The final window ends exactly at the sequence end; it is not
		// padded and nothing overlaps past it.
		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}
