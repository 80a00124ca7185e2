package vecline

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbRedis "github.com/kailas-cloud/vecline/internal/db/redis"
	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/match"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/mode"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/order"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/request"
	boltrepo "github.com/kailas-cloud/vecline/internal/repository/bolt"
	"github.com/kailas-cloud/vecline/internal/repository/knn"
	milvusrepo "github.com/kailas-cloud/vecline/internal/repository/milvus"
	healthuc "github.com/kailas-cloud/vecline/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/vecline/internal/usecase/retrieval"
	"github.com/kailas-cloud/vecline/internal/usecase/vectorize"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultIndexName        = "vecline"
	healthCheckTimeout      = 3 * time.Second
)

// retrievalUseCase is the engine behind Retrieve.
type retrievalUseCase interface {
	Retrieve(ctx context.Context, req *request.Request) (match.Result, error)
}

// backend is what the engine and health checks need from an index.
type backend interface {
	retrievaluc.Index
	healthuc.IndexPinger
}

// Client is the vecline SDK entry point. It is safe for concurrent use.
type Client struct {
	engine    retrievalUseCase
	orderer   *order.Orderer
	healthSvc healthUseCase
	limits    request.Limits
	obs       *observer
	closers   []func() error
}

// New connects the configured index backend and wires the retrieval pipeline.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	vc := domain.DefaultVectorConfig()
	cfg := &clientConfig{
		indexName:    defaultIndexName,
		dimensions:   vc.Dimensions,
		defaultTopK:  vc.DefaultTopK,
		maxTopK:      vc.MaxTopK,
		dateFields:   vc.DateFields,
		readyTimeout: defaultReadinessTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		orderer: order.New(cfg.dateFields...),
		limits:  request.Limits{DefaultTopK: cfg.defaultTopK, MaxTopK: cfg.maxTopK},
		obs:     obs,
	}

	idx, err := c.openBackend(ctx, cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	var embedder domain.Embedder = noopEmbedder{}
	var embHealth healthuc.EmbeddingChecker
	if cfg.embedder != nil {
		a := &embedderAdapter{inner: cfg.embedder}
		embedder = a
		embHealth = a
	}

	vec := vectorize.New(embedder, cfg.dimensions, cfg.embedTimeout)
	c.engine = retrievaluc.New(vec, idx, retrievaluc.Config{
		Backend:      cfg.backend,
		IndexTimeout: cfg.indexTimeout,
	})
	c.healthSvc = healthuc.New(idx, embHealth, healthCheckTimeout)
	return c, nil
}

func (cfg *clientConfig) validate() error {
	switch {
	case cfg.backend == "":
		return errors.New("vecline: index backend required (use WithValkey, WithRedis, WithMilvus, WithBolt or WithIndex)")
	case cfg.backend == backendCustom && cfg.index == nil:
		return errors.New("vecline: WithIndex requires a non-nil index")
	case cfg.dimensions <= 0:
		return fmt.Errorf("vecline: dimensions must be positive, got %d", cfg.dimensions)
	case cfg.defaultTopK <= 0 || cfg.maxTopK < cfg.defaultTopK:
		return fmt.Errorf("vecline: invalid top-k bounds %d/%d", cfg.defaultTopK, cfg.maxTopK)
	}
	return nil
}

func (c *Client) openBackend(ctx context.Context, cfg *clientConfig) (backend, error) {
	switch cfg.backend {
	case backendValkey, backendRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("vecline: create %s store: %w", cfg.backend, err)
		}
		c.closers = append(c.closers, func() error { store.Close(); return nil })
		if err := store.WaitForReady(ctx, cfg.readyTimeout); err != nil {
			return nil, fmt.Errorf("vecline: database not ready: %w", err)
		}
		repo := knn.New(store, knn.Config{
			IndexName:    cfg.indexName,
			KeyPrefix:    cfg.keyPrefix,
			VectorField:  cfg.vectorField,
			ReturnFields: cfg.returnFields,
		})
		return storeBackend{Repo: repo, store: store}, nil

	case backendMilvus:
		repo, err := milvusrepo.Open(ctx, milvusrepo.Config{
			Address:      cfg.addrs[0],
			Username:     cfg.username,
			Password:     cfg.password,
			Collection:   cfg.indexName,
			VectorField:  cfg.vectorField,
			OutputFields: cfg.returnFields,
			Dimensions:   cfg.dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("vecline: %w", err)
		}
		c.closers = append(c.closers, repo.Close)
		return repo, nil

	case backendBolt:
		repo, err := boltrepo.Open(boltrepo.Config{
			Path:       cfg.boltPath,
			Bucket:     cfg.indexName,
			Dimensions: cfg.dimensions,
			ReadOnly:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("vecline: %w", err)
		}
		c.closers = append(c.closers, repo.Close)
		return repo, nil

	case backendCustom:
		return &indexAdapter{inner: cfg.index}, nil
	}
	return nil, fmt.Errorf("vecline: unknown backend %q", cfg.backend)
}

// Retrieve returns the matches for query. opts may be nil.
// On failure no partial result is returned; use errors.Is with the
// exported sentinels or KindOf to classify the error.
func (c *Client) Retrieve(ctx context.Context, query string, opts *RetrieveOptions) (res *Result, err error) {
	start := time.Now()
	defer func() {
		n := -1
		if res != nil {
			n = len(res.Matches)
		}
		c.obs.observe("retrieve", start, n, err)
	}()

	if opts == nil {
		opts = &RetrieveOptions{}
	}
	m, err := mode.Parse(string(opts.Mode))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req, err := request.New(query, opts.TopK, m, c.limits)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries ErrInvalidRequest
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	raw, err := c.engine.Retrieve(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	return &Result{
		Matches:       toMatches(c.orderer.Order(raw.Matches, req.Mode())),
		Dropped:       toAnomalies(raw.Anomalies),
		Mode:          Mode(req.Mode()),
		TopK:          req.TopK(),
		DefaultVector: usage.DefaultVector,
		Tokens:        usage.TotalTokens,
	}, nil
}

// Close releases all resources. Safe to call more than once.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func toMatches(ms []match.Match) []Match {
	out := make([]Match, len(ms))
	for i := range ms {
		out[i] = Match{ID: ms[i].ID(), Score: ms[i].Score(), Metadata: ms[i].Metadata()}
	}
	return out
}

func toAnomalies(as []match.Anomaly) []Anomaly {
	if len(as) == 0 {
		return nil
	}
	out := make([]Anomaly, len(as))
	for i, a := range as {
		out[i] = Anomaly{Position: a.Position, ID: a.ID, Reason: a.Reason}
	}
	return out
}

// storeBackend pairs the KNN repository with the connection it pings.
type storeBackend struct {
	*knn.Repo
	store *dbRedis.Store
}

func (s storeBackend) Ping(ctx context.Context) error {
	return s.store.Ping(ctx) //nolint:wrapcheck // db.Error already carries the op
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(
	ctx context.Context, text string, opts domain.EmbedOptions,
) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text, EmbedOptions{
		Pooling:   string(opts.Pooling),
		Normalize: opts.Normalize,
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// HealthCheck delegates to the inner embedder when it supports it.
func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	hc, ok := a.inner.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedder health: %w", err)
	}
	return nil
}

// noopEmbedder is used when no embedder is configured; blank queries never reach it.
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string, _ domain.EmbedOptions) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"%w: embedder not configured (use WithEmbedder)", domain.ErrEmbeddingProviderUnavailable,
	)
}

// indexAdapter wraps public Index to satisfy the internal index contract.
type indexAdapter struct {
	inner Index
}

func (a *indexAdapter) Query(
	ctx context.Context, vector []float32, topK int, includeMetadata bool,
) ([]domain.IndexHit, error) {
	hits, err := a.inner.Query(ctx, vector, topK, includeMetadata)
	if err != nil {
		return nil, fmt.Errorf("custom index: %w", err)
	}
	out := make([]domain.IndexHit, len(hits))
	for i, h := range hits {
		out[i] = domain.IndexHit{ID: h.ID, Score: h.Score, Metadata: h.Metadata}
	}
	return out, nil
}

func (a *indexAdapter) Ping(ctx context.Context) error {
	if err := a.inner.Ping(ctx); err != nil {
		return fmt.Errorf("custom index: %w", err)
	}
	return nil
}
