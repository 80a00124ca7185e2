package domain

import "context"

// IndexHit is a raw nearest-neighbor entry as returned by a vector index backend.
// Score is nil when the backend returned no usable score for the entry.
type IndexHit struct {
	ID       string
	Score    *float64
	Metadata map[string]any
}

// VectorIndex is the nearest-neighbor query contract implemented by index backends.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]IndexHit, error)
}
