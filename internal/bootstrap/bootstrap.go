// Package bootstrap assembles the retrieval pipeline from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecline/internal/config"
	dbRedis "github.com/kailas-cloud/vecline/internal/db/redis"
	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/order"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/request"
	"github.com/kailas-cloud/vecline/internal/metrics"
	boltrepo "github.com/kailas-cloud/vecline/internal/repository/bolt"
	"github.com/kailas-cloud/vecline/internal/repository/embcache"
	"github.com/kailas-cloud/vecline/internal/repository/knn"
	milvusrepo "github.com/kailas-cloud/vecline/internal/repository/milvus"
	hfEmb "github.com/kailas-cloud/vecline/internal/transport/huggingface"
	openaiEmb "github.com/kailas-cloud/vecline/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecline/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecline/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/vecline/internal/usecase/retrieval"
	"github.com/kailas-cloud/vecline/internal/usecase/vectorize"
)

const healthTimeout = 3 * time.Second

// index is what the engine and health checks need from a backend.
type index interface {
	retrievaluc.Index
	healthuc.IndexPinger
}

// App is the assembled pipeline.
type App struct {
	Engine  *retrievaluc.Service
	Orderer *order.Orderer
	Health  *healthuc.Service
	Limits  request.Limits

	closers []func() error
}

// Close releases backend connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build connects the configured index backend, builds the embedder chain and wires the services.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	app := &App{
		Orderer: order.New(cfg.Timeline.DateFields...),
		Limits:  request.Limits{DefaultTopK: cfg.Index.DefaultTopK, MaxTopK: cfg.Index.MaxTopK},
	}

	var store *dbRedis.Store
	if needsStore(cfg) {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = s
		app.closers = append(app.closers, func() error { s.Close(); return nil })
		logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
		)
	}

	idx, err := openIndex(ctx, cfg, store, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	logger.Info("Vector index ready",
		zap.String("backend", cfg.Index.Backend),
		zap.String("name", cfg.Index.Name),
		zap.Int("dimensions", cfg.Index.Dimensions),
	)

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	vec := vectorize.New(embedder, cfg.Index.Dimensions, cfg.EmbeddingTimeout())
	app.Engine = retrievaluc.New(vec, idx, retrievaluc.Config{
		Backend:      cfg.Index.Backend,
		IndexTimeout: cfg.IndexTimeout(),
	})
	app.Health = healthuc.New(idx, newEmbeddingHealthChecker(embedder), healthTimeout)
	return app, nil
}

func needsStore(cfg *config.Config) bool {
	switch cfg.Index.Backend {
	case config.BackendValkey, config.BackendRedis:
		return true
	}
	return cfg.Embedding.Cache.Enabled
}

// openStore connects to Valkey or Redis. Both speak the same RESP protocol through rueidis.
func openStore(ctx context.Context, cfg *config.Config) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
	}
	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

func openIndex(ctx context.Context, cfg *config.Config, store *dbRedis.Store, app *App) (index, error) {
	switch cfg.Index.Backend {
	case config.BackendValkey, config.BackendRedis:
		repo := knn.New(store, knn.Config{
			IndexName:    cfg.Index.Name,
			KeyPrefix:    cfg.Index.KeyPrefix,
			VectorField:  cfg.Index.VectorField,
			ReturnFields: cfg.Index.ReturnFields,
		})
		return storeIndex{Repo: repo, store: store}, nil

	case config.BackendMilvus:
		repo, err := milvusrepo.Open(ctx, milvusrepo.Config{
			Address:      cfg.Index.Milvus.Address,
			Username:     cfg.Index.Milvus.Username,
			Password:     cfg.Index.Milvus.Password,
			Collection:   cfg.Index.Name,
			VectorField:  cfg.Index.VectorField,
			OutputFields: cfg.Index.ReturnFields,
			Dimensions:   cfg.Index.Dimensions,
			Ef:           cfg.Index.Milvus.Ef,
		})
		if err != nil {
			return nil, fmt.Errorf("open milvus: %w", err)
		}
		app.closers = append(app.closers, repo.Close)
		return repo, nil

	case config.BackendBolt:
		repo, err := boltrepo.Open(boltrepo.Config{
			Path:       cfg.Index.Bolt.Path,
			Bucket:     cfg.Index.Name,
			Dimensions: cfg.Index.Dimensions,
			ReadOnly:   true,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, repo.Close)
		return repo, nil
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
}

// storeIndex pairs the KNN repository with the connection it pings.
type storeIndex struct {
	*knn.Repo
	store *dbRedis.Store
}

func (s storeIndex) Ping(ctx context.Context) error {
	return s.store.Ping(ctx) //nolint:wrapcheck // db.Error already carries the op
}

// buildEmbedder assembles the decorator chain: provider -> cached -> instrumented.
func buildEmbedder(cfg *config.Config, store *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	var base domain.Embedder
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	default:
		base = hfEmb.NewEmbedder(&hfEmb.Config{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
			Logger:  logger,
		})
	}

	embedder := base
	if cfg.Embedding.Cache.Enabled && store != nil {
		embedder = embcache.New(base, store, embcache.Config{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Index.Dimensions,
			TTL:        time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, logger)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
