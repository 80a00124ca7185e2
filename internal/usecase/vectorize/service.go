package vectorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/logger"
	"github.com/kailas-cloud/vecline/internal/metrics"
	"github.com/kailas-cloud/vecline/internal/tracing"
)

// Service turns query text into a fixed-dimension query vector.
// A blank query maps to the zero vector without contacting the provider.
type Service struct {
	embed   Embedder
	dim     int
	timeout time.Duration
}

// New creates a vectorizer for vectors of dimension dim.
// timeout bounds each provider call; zero means the caller's context only.
func New(embed Embedder, dim int, timeout time.Duration) *Service {
	return &Service{embed: embed, dim: dim, timeout: timeout}
}

// Dimensions returns the configured vector length.
func (s *Service) Dimensions() int { return s.dim }

// Vectorize returns a vector of exactly Dimensions() elements.
// Provider failures are reported as domain.ErrEmbeddingProviderUnavailable,
// malformed output as domain.ErrInvalidEmbeddingShape. No retries.
func (s *Service) Vectorize(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		domain.UsageFromContext(ctx).MarkDefault()
		metrics.DefaultVectorTotal.Inc()
		return domain.ZeroVector(s.dim), nil
	}

	ctx, span := tracing.Start(ctx, "vectorize")
	defer span.End()
	span.SetAttributes(attribute.Int("embedding.dimensions", s.dim))

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.embed.Embed(callCtx, query, domain.QueryEmbedOptions())
	if err != nil {
		err = classify(callCtx, err)
		tracing.Fail(span, err)
		logger.FromContext(ctx).Warn("Query vectorization failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	if err := domain.ValidateVector(res.Embedding, s.dim); err != nil {
		tracing.Fail(span, err)
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	span.SetAttributes(attribute.Int("embedding.total_tokens", res.TotalTokens))

	return res.Embedding, nil
}

// classify maps a provider error onto the two vectorizer failure kinds.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidEmbeddingShape),
		errors.Is(err, domain.ErrEmbeddingProviderUnavailable):
		return fmt.Errorf("vectorize query: %w", err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderUnavailable, ctx.Err())
	default:
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderUnavailable, err)
	}
}
