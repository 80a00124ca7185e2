package vectorize

import (
	"context"

	"github.com/kailas-cloud/vecline/internal/domain"
)

// Embedder is the provider call the vectorizer depends on.
type Embedder interface {
	Embed(ctx context.Context, text string, opts domain.EmbedOptions) (domain.EmbeddingResult, error)
}
