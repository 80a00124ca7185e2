// Package milvus serves vector queries from a Milvus collection.
package milvus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/tracing"
)

// dynamicField holds undeclared attributes when the collection has dynamic schema enabled.
const dynamicField = "$meta"

// Defaults for Config.
const (
	DefaultVectorField = "vector"
	DefaultEf          = 128
)

// searcher is the subset of client.Client used here (ISP).
type searcher interface {
	Search(
		ctx context.Context, collName string, partitions []string, expr string,
		outputFields []string, vectors []entity.Vector, vectorField string,
		metricType entity.MetricType, topK int, sp entity.SearchParam,
		opts ...client.SearchQueryOptionFunc,
	) ([]client.SearchResult, error)
	HasCollection(ctx context.Context, collName string) (bool, error)
}

// Config locates the collection and tunes HNSW search.
type Config struct {
	Address      string
	Username     string
	Password     string
	Collection   string
	VectorField  string
	OutputFields []string
	Dimensions   int
	Ef           int
}

// Repo is a vector index backed by a Milvus collection with a COSINE index.
type Repo struct {
	client searcher
	closer func() error
	cfg    Config
}

// Open connects to Milvus.
func Open(ctx context.Context, cfg Config) (*Repo, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus %s: %w", cfg.Address, err)
	}
	r := New(c, cfg)
	r.closer = c.Close
	return r, nil
}

// New wraps an existing client.
func New(c searcher, cfg Config) *Repo {
	if cfg.VectorField == "" {
		cfg.VectorField = DefaultVectorField
	}
	if cfg.Ef <= 0 {
		cfg.Ef = DefaultEf
	}
	return &Repo{client: c, cfg: cfg}
}

// Close releases the connection.
func (r *Repo) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// Ping verifies the collection is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	ok, err := r.client.HasCollection(ctx, r.cfg.Collection)
	if err != nil {
		return fmt.Errorf("has collection %s: %w", r.cfg.Collection, err)
	}
	if !ok {
		return fmt.Errorf("collection %s not found", r.cfg.Collection)
	}
	return nil
}

// Query returns up to topK nearest entities. Scores are COSINE similarities.
func (r *Repo) Query(
	ctx context.Context, vector []float32, topK int, includeMetadata bool,
) ([]domain.IndexHit, error) {
	ctx, span := tracing.Start(ctx, "milvus.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("milvus.collection", r.cfg.Collection),
		attribute.Int("milvus.top_k", topK),
	)

	if r.cfg.Dimensions > 0 && len(vector) != r.cfg.Dimensions {
		err := fmt.Errorf("%w: vector has %d dimensions, collection expects %d",
			domain.ErrIndexQueryRejected, len(vector), r.cfg.Dimensions)
		tracing.Fail(span, err)
		return nil, err
	}

	sp, err := entity.NewIndexHNSWSearchParam(r.cfg.Ef)
	if err != nil {
		return nil, fmt.Errorf("%w: search param: %w", domain.ErrIndexQueryRejected, err)
	}

	var output []string
	if includeMetadata {
		output = r.cfg.OutputFields
		if len(output) == 0 {
			output = []string{"*"}
		}
	}

	start := time.Now()
	results, err := r.client.Search(ctx,
		r.cfg.Collection,
		nil,
		"",
		output,
		[]entity.Vector{entity.FloatVector(vector)},
		r.cfg.VectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		err = classify(ctx, r.cfg.Collection, err)
		tracing.Fail(span, err)
		return nil, err
	}

	var hits []domain.IndexHit
	for _, res := range results {
		if res.Err != nil {
			err := classify(ctx, r.cfg.Collection, res.Err)
			tracing.Fail(span, err)
			return nil, err
		}
		for i := 0; i < res.ResultCount; i++ {
			hit := domain.IndexHit{ID: columnString(res.IDs, i)}
			if i < len(res.Scores) {
				score := float64(res.Scores[i])
				hit.Score = &score
			}
			if includeMetadata {
				hit.Metadata = r.metadata(res.Fields, i)
			}
			hits = append(hits, hit)
		}
	}

	span.SetAttributes(
		attribute.Int("milvus.result_count", len(hits)),
		attribute.Int64("milvus.duration_ms", time.Since(start).Milliseconds()),
	)
	return hits, nil
}

func (r *Repo) metadata(fields client.ResultSet, i int) map[string]any {
	md := make(map[string]any, len(fields))
	for _, col := range fields {
		if col == nil || col.Name() == r.cfg.VectorField {
			continue
		}
		v, err := col.Get(i)
		if err != nil {
			continue
		}
		raw, isJSON := v.([]byte)
		if !isJSON {
			md[col.Name()] = v
			continue
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			md[col.Name()] = string(raw)
			continue
		}
		if obj, ok := decoded.(map[string]any); ok && col.Name() == dynamicField {
			for k, val := range obj {
				md[k] = val
			}
			continue
		}
		md[col.Name()] = decoded
	}
	return md
}

func columnString(col entity.Column, i int) string {
	if col == nil || i >= col.Len() {
		return ""
	}
	v, err := col.Get(i)
	if err != nil || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// refusalMarkers appear in the reasons Milvus gives when it refuses a search.
// The SDK returns those reasons as plain errors without the server error code.
var refusalMarkers = []string{
	"dimension",
	"mismatch",
	"not match",
	"not exist",
	"not found",
	"not loaded",
	"invalid",
	"illegal",
	"should be",
}

// classify splits search failures into rejections, where the server refused
// the query itself, and unavailability for transport failures or overload.
func classify(ctx context.Context, collection string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("milvus search %s: %w: %w", collection, domain.ErrIndexUnavailable, err)
	}
	if rejected(err) {
		return fmt.Errorf("milvus search %s: %w: %w", collection, domain.ErrIndexQueryRejected, err)
	}
	return fmt.Errorf("milvus search %s: %w: %w", collection, domain.ErrIndexUnavailable, err)
}

func rejected(err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.OutOfRange:
			return true
		default:
			return false
		}
	}
	var collErr client.ErrCollectionNotExists
	var partErr client.ErrPartitionNotExists
	if errors.As(err, &collErr) || errors.As(err, &partErr) {
		return true
	}
	if errors.Is(err, client.ErrClientNotReady) || errors.Is(err, client.ErrStatusNil) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range refusalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
