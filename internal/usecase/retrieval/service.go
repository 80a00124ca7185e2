package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/match"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/request"
	"github.com/kailas-cloud/vecline/internal/logger"
	"github.com/kailas-cloud/vecline/internal/metrics"
	"github.com/kailas-cloud/vecline/internal/tracing"
)

// Config tunes the engine.
type Config struct {
	// Backend labels index metrics and spans.
	Backend string
	// IndexTimeout bounds the index call; zero means the caller's context only.
	IndexTimeout time.Duration
}

// Service is the retrieval engine: vectorize the query, query the index,
// and return well-formed matches in index order.
type Service struct {
	vec   Vectorizer
	index Index
	cfg   Config
}

// New creates a retrieval engine.
func New(vec Vectorizer, index Index, cfg Config) *Service {
	if cfg.Backend == "" {
		cfg.Backend = "unknown"
	}
	return &Service{vec: vec, index: index, cfg: cfg}
}

// Retrieve runs one retrieval. On any failure no partial result is returned.
func (s *Service) Retrieve(ctx context.Context, req *request.Request) (match.Result, error) {
	ctx, span := tracing.Start(ctx, "retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("retrieval.top_k", req.TopK()),
		attribute.Bool("retrieval.blank_query", req.IsBlank()),
		attribute.String("retrieval.backend", s.cfg.Backend),
	)

	res, err := s.retrieve(ctx, req)
	if err != nil {
		kind := domain.KindOf(err)
		metrics.RetrievalsTotal.WithLabelValues(string(kind)).Inc()
		span.SetAttributes(attribute.String("retrieval.error_kind", string(kind)))
		tracing.Fail(span, err)
		return match.Result{}, err
	}

	metrics.RetrievalsTotal.WithLabelValues("ok").Inc()
	metrics.RetrievalMatches.Observe(float64(res.Len()))
	span.SetAttributes(
		attribute.Int("retrieval.matches", res.Len()),
		attribute.Int("retrieval.anomalies", len(res.Anomalies)),
	)
	return res, nil
}

func (s *Service) retrieve(ctx context.Context, req *request.Request) (match.Result, error) {
	vector, err := s.vec.Vectorize(ctx, req.Query())
	if err != nil {
		return match.Result{}, err
	}

	hits, err := s.queryIndex(ctx, vector, req.TopK())
	if err != nil {
		return match.Result{}, err
	}

	return s.collect(ctx, hits, req.TopK()), nil
}

func (s *Service) queryIndex(ctx context.Context, vector []float32, topK int) ([]domain.IndexHit, error) {
	callCtx := ctx
	if s.cfg.IndexTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.IndexTimeout)
		defer cancel()
	}

	start := time.Now()
	hits, err := s.index.Query(callCtx, vector, topK, true)
	metrics.IndexRequestDuration.WithLabelValues(s.cfg.Backend).Observe(time.Since(start).Seconds())
	if err != nil {
		err = classifyIndexError(callCtx, err)
		metrics.IndexRequestsTotal.WithLabelValues(s.cfg.Backend, string(domain.KindOf(err))).Inc()
		logger.FromContext(ctx).Warn("Vector index query failed",
			zap.String("backend", s.cfg.Backend),
			zap.Int("top_k", topK),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.IndexRequestsTotal.WithLabelValues(s.cfg.Backend, "ok").Inc()
	return hits, nil
}

// collect converts raw hits into matches, dropping entries without an id or a
// finite score. Order is preserved and the result never exceeds topK.
func (s *Service) collect(ctx context.Context, hits []domain.IndexHit, topK int) match.Result {
	res := match.Result{Matches: make([]match.Match, 0, min(len(hits), topK))}
	for i, h := range hits {
		reason := ""
		switch {
		case h.ID == "":
			reason = match.ReasonMissingID
		case h.Score == nil || math.IsNaN(*h.Score) || math.IsInf(*h.Score, 0):
			reason = match.ReasonMissingScore
		}
		if reason != "" {
			res.Anomalies = append(res.Anomalies, match.Anomaly{Position: i, ID: h.ID, Reason: reason})
			metrics.RetrievalAnomaliesTotal.WithLabelValues(reason).Inc()
			logger.FromContext(ctx).Warn("Dropped malformed index entry",
				zap.Int("position", i),
				zap.String("id", h.ID),
				zap.String("reason", reason),
			)
			continue
		}
		if len(res.Matches) == topK {
			break
		}
		res.Matches = append(res.Matches, match.New(h.ID, *h.Score, h.Metadata))
	}
	return res
}

// classifyIndexError keeps an explicit rejection and reports everything else as unavailability.
func classifyIndexError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrIndexQueryRejected),
		errors.Is(err, domain.ErrIndexUnavailable):
		return fmt.Errorf("query index: %w", err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, ctx.Err())
	default:
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
}
