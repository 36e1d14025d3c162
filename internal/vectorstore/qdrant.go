package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"intranet-ai/internal/contextutil"
)

// upsertBatchSize bounds one gRPC upsert call during a rebuild.
const upsertBatchSize = 128

// QdrantStore implements VectorStore using Qdrant.
//
// The queryable index is addressed through a collection alias. A rebuild
// loads a fresh timestamped collection and then repoints the alias, so
// readers never observe a half-built index; the previous collection is
// dropped after the swap.
type QdrantStore struct {
	client     *qdrant.Client
	alias      string
	vectorSize int
}

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
// alias names the queryable index; vectorSize is the embedding dimension.
func NewQdrantStore(urlStr, alias string, vectorSize int) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	// Extract port from URL, default to 6333 for HTTP
	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		alias:      alias,
		vectorSize: vectorSize,
	}, nil
}

// Rebuild loads all points into a fresh collection and swaps the alias to it.
func (s *QdrantStore) Rebuild(ctx context.Context, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	staging := fmt.Sprintf("%s_%d", s.alias, time.Now().UnixNano())

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: staging,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create staging collection: %w", err)
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}

		qdrantPoints := make([]*qdrant.PointStruct, 0, end-start)
		for _, point := range points[start:end] {
			qdrantPoint := &qdrant.PointStruct{
				Id:      qdrant.NewID(point.ID),
				Vectors: qdrant.NewVectors(point.Vec...),
			}
			if len(point.Meta) > 0 {
				qdrantPoint.Payload = qdrant.NewValueMap(point.Meta)
			}
			qdrantPoints = append(qdrantPoints, qdrantPoint)
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: staging,
			Points:         qdrantPoints,
		}); err != nil {
			// Abandon the staging collection; the live alias is untouched.
			_ = s.client.DeleteCollection(ctx, staging)
			return fmt.Errorf("failed to upsert points into staging collection: %w", err)
		}
	}

	previous, err := s.aliasTarget(ctx)
	if err != nil {
		_ = s.client.DeleteCollection(ctx, staging)
		return fmt.Errorf("failed to resolve current alias target: %w", err)
	}

	if previous != "" {
		if err := s.client.DeleteAlias(ctx, s.alias); err != nil {
			_ = s.client.DeleteCollection(ctx, staging)
			return fmt.Errorf("failed to drop old alias: %w", err)
		}
	}
	if err := s.client.CreateAlias(ctx, s.alias, staging); err != nil {
		return fmt.Errorf("failed to point alias at new collection: %w", err)
	}

	if previous != "" {
		if err := s.client.DeleteCollection(ctx, previous); err != nil {
			// The swap already happened; log and move on.
			logger.WarnContext(ctx, "failed to delete previous collection", "collection", previous, "error", err)
		}
	}

	logger.InfoContext(ctx, "rebuilt vector index", "alias", s.alias, "collection", staging, "points", len(points))
	return nil
}

// Search performs a similarity search against the alias.
func (s *QdrantStore) Search(ctx context.Context, query []float32, limit int) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	if err := s.Ready(ctx); err != nil {
		return nil, err
	}

	qLimit := uint64(limit)
	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.alias,
		Query:          qdrant.NewQuery(query...),
		Limit:          &qLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "vector search failed", "alias", s.alias, "limit", limit, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		pointID := ""
		if point.Id != nil {
			pointID = point.Id.GetUuid()
		}

		meta := make(map[string]any)
		if point.Payload != nil {
			meta = convertPayloadToMap(point.Payload)
		}

		results = append(results, SearchResult{
			PointID: pointID,
			Score:   point.Score,
			Meta:    meta,
		})
	}

	logger.DebugContext(ctx, "vector search completed", "alias", s.alias, "limit", limit, "results", len(results))
	return results, nil
}

// Ready reports whether the alias points at a built collection.
func (s *QdrantStore) Ready(ctx context.Context) error {
	target, err := s.aliasTarget(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if target == "" {
		return fmt.Errorf("%w: no index has been built at alias %q", ErrUnavailable, s.alias)
	}
	return nil
}

// aliasTarget resolves the collection the alias currently points at, or ""
// when the alias does not exist.
func (s *QdrantStore) aliasTarget(ctx context.Context) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", err
	}
	for _, alias := range aliases {
		if alias.GetAliasName() == s.alias {
			return alias.GetCollectionName(), nil
		}
	}
	return "", nil
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
