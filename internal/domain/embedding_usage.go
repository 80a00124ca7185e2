package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage records how the query vector of a single request was obtained.
// The handler puts a mutable pointer into the context before calling the engine;
// the vectorizer writes to it; the handler reads it for response headers.
type EmbeddingUsage struct {
	TotalTokens   int
	Used          bool // provider was called, even on a cache hit with 0 tokens
	DefaultVector bool // blank query, zero vector substituted
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}

// MarkDefault records that the default vector was used instead of the provider.
func (u *EmbeddingUsage) MarkDefault() {
	if u != nil {
		u.DefaultVector = true
	}
}
