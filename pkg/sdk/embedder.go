package vecline

import "context"

// Embedder converts query text to a vector.
// Optional: if it also implements HealthCheck(ctx) error, Health reports on it.
type Embedder interface {
	Embed(ctx context.Context, text string, opts EmbedOptions) (EmbeddingResult, error)
}

// EmbedOptions are forwarded from the pipeline with every call.
type EmbedOptions struct {
	Pooling   string // "mean" or "cls"
	Normalize bool
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Index is a caller-supplied nearest-neighbour backend, see WithIndex.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Hit, error)
	Ping(ctx context.Context) error
}

// Hit is a raw index entry. A nil Score or empty ID drops the entry from results.
type Hit struct {
	ID       string
	Score    *float64
	Metadata map[string]any
}
