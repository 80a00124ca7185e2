package domain

import "context"

// Pooling selects how token embeddings are reduced to a single sentence vector.
type Pooling string

const (
	// PoolingMean averages token embeddings.
	PoolingMean Pooling = "mean"
	// PoolingCLS takes the classification token embedding.
	PoolingCLS Pooling = "cls"
)

// EmbedOptions are passed through to the provider with every request.
type EmbedOptions struct {
	Pooling   Pooling
	Normalize bool
}

// QueryEmbedOptions is the configuration used for query vectors: mean pooled, unit length.
func QueryEmbedOptions() EmbedOptions {
	return EmbedOptions{Pooling: PoolingMean, Normalize: true}
}

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string, opts EmbedOptions) (EmbeddingResult, error)
}

// HealthChecker verifies provider or index availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
