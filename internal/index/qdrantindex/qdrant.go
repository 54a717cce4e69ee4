// Package qdrantindex implements the vector index contract on top of a
// Qdrant collection for deployments where the corpus outgrows process
// memory or must survive restarts.
package qdrantindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/docquery/docquery/internal/index"
)

var (
	ErrUnreachable       = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// textPayloadKey stores the chunk text; every other payload key carries
// chunk metadata.
const textPayloadKey = "text"

// Index stores chunk embeddings in a Qdrant collection.
type Index struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// New connects to Qdrant, verifies health with retry and ensures the
// collection exists with the configured vector dimension.
func New(host string, port int, collection string, dimension int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	x := &Index{client: client, collection: collection, dimension: dimension}

	ctx := context.Background()
	if err := x.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if err := x.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return x, nil
}

// healthCheckWithRetry probes Qdrant with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (x *Index) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return x.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (x *Index) Health(ctx context.Context) error {
	result, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// ensureCollection creates the chunk collection if it does not exist.
// Idempotent, so concurrent or repeated startups are safe.
func (x *Index) ensureCollection(ctx context.Context) error {
	collections, err := x.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == x.collection {
			return nil
		}
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(x.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Upsert stores a chunk. The deterministic chunk id is mapped to a stable
// UUID so repeated inserts of the same id overwrite instead of duplicating.
func (x *Index) Upsert(ctx context.Context, id, text string, metadata map[string]string, embedding []float32) error {
	if len(embedding) != x.dimension {
		return fmt.Errorf("%w: got %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), x.dimension)
	}

	payload := map[string]any{textPayloadKey: text}
	for k, v := range metadata {
		if k == textPayloadKey {
			continue
		}
		payload[k] = v
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(id)),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(payload),
	}
	return x.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// upsertWithRetry performs the upsert with exponential backoff.
func (x *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: x.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Query returns up to topK chunks ranked by cosine similarity.
func (x *Index) Query(ctx context.Context, embedding []float32, topK int) ([]index.Result, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(embedding) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), x.dimension)
	}

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	results := make([]index.Result, 0, len(points))
	for _, point := range points {
		metadata := make(map[string]string, len(point.Payload))
		var text string
		for k, v := range point.Payload {
			if k == textPayloadKey {
				text = v.GetStringValue()
				continue
			}
			metadata[k] = v.GetStringValue()
		}
		results = append(results, index.Result{
			Text:     text,
			Metadata: metadata,
			Score:    float64(point.Score),
		})
	}
	return results, nil
}

// Size returns the exact number of stored chunks.
func (x *Index) Size(ctx context.Context) (int, error) {
	count, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int(count), nil
}

// Close closes the underlying client connection.
func (x *Index) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}

// pointID derives a stable UUID from a deterministic chunk id.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}
