package retrieval

import (
	"context"

	"github.com/kailas-cloud/vecline/internal/domain"
)

// Vectorizer turns query text into a query vector.
type Vectorizer interface {
	Vectorize(ctx context.Context, query string) ([]float32, error)
}

// Index runs a nearest-neighbour query.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]domain.IndexHit, error)
}
