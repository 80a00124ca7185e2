package knn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecline/internal/db"
	"github.com/kailas-cloud/vecline/internal/domain"
)

// jsonRootField is the field FT.SEARCH returns for JSON documents without RETURN.
const jsonRootField = "$"

// store is the consumer interface for KNN search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config locates the FT index and shapes the returned metadata.
type Config struct {
	IndexName string
	// KeyPrefix is stripped from document keys to form match ids.
	KeyPrefix   string
	VectorField string
	// ReturnFields limits metadata to the listed attributes; empty returns all.
	ReturnFields []string
}

// Repo is a vector index backed by a Valkey or Redis FT index.
type Repo struct {
	store store
	cfg   Config
}

// New creates a KNN repository.
func New(s store, cfg Config) *Repo {
	if cfg.VectorField == "" {
		cfg.VectorField = db.DefaultVectorField
	}
	return &Repo{store: s, cfg: cfg}
}

// Query returns up to topK nearest documents, most similar first.
func (r *Repo) Query(
	ctx context.Context, vector []float32, topK int, includeMetadata bool,
) ([]domain.IndexHit, error) {
	q := &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  r.cfg.VectorField,
		Vector:       vector,
		K:            topK,
		ReturnFields: r.cfg.ReturnFields,
		ScoreOnly:    !includeMetadata,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, classify(r.cfg.IndexName, err)
	}
	if sr == nil {
		return nil, nil
	}

	hits := make([]domain.IndexHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hit := domain.IndexHit{ID: strings.TrimPrefix(entry.Key, r.cfg.KeyPrefix)}
		if entry.HasScore {
			score := entry.Score
			hit.Score = &score
		}
		if includeMetadata {
			hit.Metadata = r.metadata(entry.Fields)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// metadata converts hash fields or a JSON document into a metadata map.
// The vector attribute is binary and never returned.
func (r *Repo) metadata(fields map[string]string) map[string]any {
	if raw, ok := fields[jsonRootField]; ok {
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err == nil {
			delete(doc, r.cfg.VectorField)
			return doc
		}
	}
	md := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == r.cfg.VectorField || k == jsonRootField {
			continue
		}
		md[k] = v
	}
	return md
}

func classify(index string, err error) error {
	if errors.Is(err, db.ErrQueryRejected) {
		return fmt.Errorf("search knn %s: %w: %w", index, domain.ErrIndexQueryRejected, err)
	}
	return fmt.Errorf("search knn %s: %w: %w", index, domain.ErrIndexUnavailable, err)
}
