// Package retriever performs role-filtered similarity search over the
// ingested corpus. Every result returned to a caller has passed the access
// check for the requesting role; chunks the role may not read are dropped
// before ranking, deduplication, or answering ever see them.
package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"intranet-ai/internal/contextutil"
	"intranet-ai/internal/rbac"
	"intranet-ai/internal/storage"
	"intranet-ai/internal/vectorstore"
)

const (
	// DefaultK is how many chunks a retrieval returns at most.
	DefaultK = 15
	// DefaultMinWords drops boilerplate fragments; chunks with fewer words
	// rarely carry enough context to ground an answer.
	DefaultMinWords = 40
	// overFetchFactor widens the raw similarity search so that role
	// filtering and deduplication still leave k results to return.
	overFetchFactor = 5
	// dedupPrefixRunes is how much of a chunk's text feeds its dedup hash.
	// Overlapping windows of the same passage share this prefix often
	// enough to collapse near-duplicates without hashing whole chunks.
	dedupPrefixRunes = 300
)

// Mode selects how the role filter treats the role hierarchy.
type Mode string

const (
	// ModeStrict admits a chunk only when the requesting role itself is in
	// the chunk's accessible roles.
	ModeStrict Mode = "strict"
	// ModeHierarchy additionally admits chunks accessible to any role the
	// requester inherits through the policy hierarchy.
	ModeHierarchy Mode = "hierarchy"
)

// Embedder converts a query into the same vector space the corpus was
// indexed in.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// RetrievedChunk is one role-checked retrieval hit, ordered by relevance.
type RetrievedChunk struct {
	PointID    string  `json:"point_id"`
	ChunkID    string  `json:"chunk_id"`
	SourcePath string  `json:"source_path"`
	Category   string  `json:"category"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// SecureRetriever embeds a query, over-fetches from the vector index, and
// filters the hits down to what the requesting role may read.
type SecureRetriever struct {
	policy      *rbac.Policy
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	chunkStore  storage.ChunkStore
	k           int
	minWords    int
	mode        Mode
	timeout     time.Duration
}

// Option configures a SecureRetriever.
type Option func(*SecureRetriever)

// WithK sets how many chunks a retrieval returns at most.
func WithK(k int) Option {
	return func(r *SecureRetriever) { r.k = k }
}

// WithMinWords sets the minimum word count a chunk must have to be
// returned. Zero disables the filter.
func WithMinWords(n int) Option {
	return func(r *SecureRetriever) { r.minWords = n }
}

// WithMode sets the role filter mode.
func WithMode(mode Mode) Option {
	return func(r *SecureRetriever) { r.mode = mode }
}

// WithTimeout bounds one retrieval end to end, embedding included. Zero
// means no deadline beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(r *SecureRetriever) { r.timeout = d }
}

// NewSecureRetriever creates a retriever with the default limits and
// hierarchy-aware role filtering.
func NewSecureRetriever(
	policy *rbac.Policy,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	chunkStore storage.ChunkStore,
	opts ...Option,
) *SecureRetriever {
	r := &SecureRetriever{
		policy:      policy,
		embedder:    embedder,
		vectorStore: vectorStore,
		chunkStore:  chunkStore,
		k:           DefaultK,
		minWords:    DefaultMinWords,
		mode:        ModeHierarchy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeQuery lowercases the query, collapses whitespace runs, and trims
// the ends, matching how corpus content was normalized at ingestion time.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Retrieve returns up to k chunks relevant to the query that the given role
// may read, in descending relevance order. An unknown role yields
// rbac.ErrInvalidRole; an unreachable or timed-out vector index yields an
// error wrapping vectorstore.ErrUnavailable.
func (r *SecureRetriever) Retrieve(ctx context.Context, role, query string) ([]RetrievedChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	allowed, err := r.allowedRoles(role)
	if err != nil {
		return nil, err
	}

	query = NormalizeQuery(query)
	if query == "" {
		return nil, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vectors, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: query embedding timed out", vectorstore.ErrUnavailable)
		}
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.vectorStore.Search(ctx, vectors[0], r.k*overFetchFactor)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: search timed out", vectorstore.ErrUnavailable)
		}
		return nil, err
	}

	seen := make(map[string]struct{})
	results := make([]RetrievedChunk, 0, r.k)
	for _, hit := range hits {
		if len(results) >= r.k {
			break
		}

		if !roleAllowed(allowed, metaString(hit.Meta, "accessible_roles")) {
			continue
		}

		record, err := r.chunkStore.GetByPointID(ctx, hit.PointID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// The text store may briefly lag the vector index during a
				// rebuild; an unresolvable point is skipped, not fatal.
				logger.DebugContext(ctx, "skipping unresolved point", "point_id", hit.PointID)
				continue
			}
			return nil, fmt.Errorf("failed to load chunk %s: %w", hit.PointID, err)
		}

		if r.minWords > 0 && len(strings.Fields(record.Text)) < r.minWords {
			continue
		}

		key := dedupKey(record.SourcePath, record.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		results = append(results, RetrievedChunk{
			PointID:    hit.PointID,
			ChunkID:    record.ChunkID,
			SourcePath: record.SourcePath,
			Category:   record.Category,
			Text:       record.Text,
			Score:      hit.Score,
		})
	}

	logger.DebugContext(ctx, "retrieval complete",
		"role", role,
		"hits", len(hits),
		"returned", len(results),
	)
	return results, nil
}

// allowedRoles resolves the set of roles the requester effectively holds
// under the configured mode.
func (r *SecureRetriever) allowedRoles(role string) (map[string]struct{}, error) {
	if r.mode == ModeStrict {
		role = rbac.Normalize(role)
		if _, err := r.policy.AllowedCategories(role); err != nil {
			return nil, err
		}
		return map[string]struct{}{role: {}}, nil
	}
	return r.policy.EffectiveRoles(role)
}

// roleAllowed reports whether any of the chunk's comma-joined accessible
// roles is held by the requester.
func roleAllowed(held map[string]struct{}, accessibleRoles string) bool {
	if accessibleRoles == "" {
		return false
	}
	for _, role := range strings.Split(accessibleRoles, ",") {
		if _, ok := held[strings.TrimSpace(role)]; ok {
			return true
		}
	}
	return false
}

// dedupKey identifies near-duplicate chunks from the same source file by
// hashing a fixed-length prefix of their text.
func dedupKey(sourcePath, text string) string {
	runes := []rune(text)
	if len(runes) > dedupPrefixRunes {
		runes = runes[:dedupPrefixRunes]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return sourcePath + "::" + hex.EncodeToString(sum[:])
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}
