package vecline

import (
	"context"
	"errors"
	"sync"
)

// --- Embedder mock ---

type mockEmbedder struct {
	fn       func(ctx context.Context, text string, opts EmbedOptions) (EmbeddingResult, error)
	healthFn func(ctx context.Context) error

	mu    sync.Mutex
	calls int
	opts  EmbedOptions
}

func (m *mockEmbedder) Embed(ctx context.Context, text string, opts EmbedOptions) (EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.opts = opts
	m.mu.Unlock()
	return m.fn(ctx, text, opts)
}

func (m *mockEmbedder) HealthCheck(ctx context.Context) error {
	if m.healthFn == nil {
		return nil
	}
	return m.healthFn(ctx)
}

// --- Index mock ---

type mockIndex struct {
	queryFn func(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	pingErr error

	mu       sync.Mutex
	calls    int
	lastK    int
	lastVec  []float32
	lastMeta bool
}

func (m *mockIndex) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Hit, error) {
	m.mu.Lock()
	m.calls++
	m.lastK = topK
	m.lastVec = vector
	m.lastMeta = includeMetadata
	m.mu.Unlock()
	return m.queryFn(ctx, vector, topK)
}

func (m *mockIndex) Ping(_ context.Context) error { return m.pingErr }

// --- helpers ---

const testDim = 4

func score(f float64) *float64 { return &f }

// fixedEmbedder returns the same unit vector for any text and reports 7 tokens.
func fixedEmbedder() *mockEmbedder {
	return &mockEmbedder{
		fn: func(_ context.Context, _ string, _ EmbedOptions) (EmbeddingResult, error) {
			return EmbeddingResult{Embedding: []float32{1, 0, 0, 0}, PromptTokens: 7, TotalTokens: 7}, nil
		},
	}
}

// datedIndex returns three dated hits (2020, 2021, 2019) and one without a score.
func datedIndex() *mockIndex {
	return &mockIndex{
		queryFn: func(_ context.Context, _ []float32, _ int) ([]Hit, error) {
			return []Hit{
				{ID: "a", Score: score(0.9), Metadata: map[string]any{"date": "2020-05-01"}},
				{ID: "b", Score: score(0.8), Metadata: map[string]any{"datestamp": "2021-01-15"}},
				{ID: "broken", Score: nil},
				{ID: "c", Score: score(0.7), Metadata: map[string]any{"date": "2019-12-31"}},
			}, nil
		},
	}
}

func failingIndex(err error) *mockIndex {
	return &mockIndex{
		queryFn: func(_ context.Context, _ []float32, _ int) ([]Hit, error) {
			return nil, err
		},
		pingErr: err,
	}
}

var errBoom = errors.New("boom")

func newTestClient(idx Index, emb Embedder, opts ...Option) (*Client, error) {
	base := []Option{WithIndex(idx), WithDimensions(testDim)}
	if emb != nil {
		base = append(base, WithEmbedder(emb))
	}
	return New(context.Background(), append(base, opts...)...)
}
