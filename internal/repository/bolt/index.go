// Package bolt serves vector queries from a local bbolt file by exhaustive cosine scan.
package bolt

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kailas-cloud/vecline/internal/domain"
)

// DefaultBucket holds one Record per document id.
const DefaultBucket = "vectors"

// Record is the stored value format: JSON {"v": [...], "m": {...}}.
type Record struct {
	Vector   []float32      `json:"v"`
	Metadata map[string]any `json:"m,omitempty"`
}

// Config locates the file and bucket.
type Config struct {
	Path       string
	Bucket     string
	Dimensions int
	ReadOnly   bool
	Timeout    time.Duration
}

// Index is a read path over a bbolt vector bucket.
type Index struct {
	db     *bbolt.DB
	bucket []byte
	dim    int
}

// Open opens (or creates, when writable) the bbolt file.
func Open(cfg Config) (*Index, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{ReadOnly: cfg.ReadOnly, Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", cfg.Path, err)
	}
	return New(db, cfg.Bucket, cfg.Dimensions), nil
}

// New wraps an open database.
func New(db *bbolt.DB, bucket string, dim int) *Index {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Index{db: db, bucket: []byte(bucket), dim: dim}
}

// Close closes the file.
func (x *Index) Close() error {
	return x.db.Close() //nolint:wrapcheck // single call site
}

// Ping checks that the bucket exists.
func (x *Index) Ping(_ context.Context) error {
	return x.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(x.bucket) == nil {
			return fmt.Errorf("bucket %q not found", x.bucket)
		}
		return nil
	})
}

// Put stores a record. Used to seed local fixtures.
func (x *Index) Put(id string, rec Record) error {
	if x.dim > 0 && len(rec.Vector) != x.dim {
		return domain.NewDimensionMismatch(len(rec.Vector), x.dim)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", id, err)
	}
	return x.db.Update(func(tx *bbolt.Tx) error { //nolint:wrapcheck // bbolt errors are descriptive
		b, err := tx.CreateBucketIfNotExists(x.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

type scored struct {
	id    string
	score float64
	md    map[string]any
}

// Query scores every stored vector against the query and returns the topK most similar.
// Ties keep key order, so the zero vector yields the first topK keys.
func (x *Index) Query(
	ctx context.Context, vector []float32, topK int, includeMetadata bool,
) ([]domain.IndexHit, error) {
	if x.dim > 0 && len(vector) != x.dim {
		return nil, fmt.Errorf("%w: vector has %d dimensions, index expects %d",
			domain.ErrIndexQueryRejected, len(vector), x.dim)
	}

	var all []scored
	err := x.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(x.bucket)
		if b == nil {
			return fmt.Errorf("%w: bucket %q not found", domain.ErrIndexQueryRejected, x.bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil || len(rec.Vector) != len(vector) {
				return nil // skip corrupt or foreign-dimension entries
			}
			s := scored{id: string(k), score: cosineSimilarity(vector, rec.Vector)}
			if includeMetadata {
				s.md = rec.Metadata
			}
			all = append(all, s)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrIndexQueryRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}

	slices.SortStableFunc(all, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if topK < len(all) {
		all = all[:topK]
	}

	hits := make([]domain.IndexHit, len(all))
	for i, s := range all {
		score := s.score
		hits[i] = domain.IndexHit{ID: s.id, Score: &score, Metadata: s.md}
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
