package vecline

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	backendValkey = "valkey"
	backendRedis  = "redis"
	backendMilvus = "milvus"
	backendBolt   = "bolt"
	backendCustom = "custom"
)

type clientConfig struct {
	backend  string
	addrs    []string
	username string
	password string

	boltPath string
	index    Index

	indexName    string
	keyPrefix    string
	vectorField  string
	returnFields []string

	embedder Embedder

	dimensions   int
	defaultTopK  int
	maxTopK      int
	dateFields   []string
	embedTimeout time.Duration
	indexTimeout time.Duration
	readyTimeout time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey queries a Valkey search index at addr.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = backendValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis queries a Redis Stack search index at addr.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = backendRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMilvus queries a Milvus collection named by WithIndexName.
func WithMilvus(addr, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = backendMilvus
		c.addrs = []string{addr}
		c.username = username
		c.password = password
	})
}

// WithBolt queries a local bbolt file. The bucket is the index name.
// The file is opened read-only.
func WithBolt(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = backendBolt
		c.boltPath = path
	})
}

// WithIndex plugs in a custom backend instead of a built-in one.
func WithIndex(idx Index) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = backendCustom
		c.index = idx
	})
}

// WithIndexName sets the search index, collection or bucket name.
// Default: "vecline".
func WithIndexName(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
	})
}

// WithKeyPrefix sets the hash key prefix stripped from Valkey/Redis ids.
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithVectorField sets the vector field name. Default: "vector".
func WithVectorField(field string) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorField = field
	})
}

// WithReturnFields limits the metadata fields loaded with each match.
// Default: all fields.
func WithReturnFields(fields ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.returnFields = fields
	})
}

// WithEmbedder sets the text embedding provider.
// Without it only blank queries can be served.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithDimensions sets the query vector dimension.
// Defaults to 384 (all-MiniLM-L6-v2).
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithTopK sets the default and maximum number of matches per call.
// Defaults: 10 and 100.
func WithTopK(defaultK, maxK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultTopK = defaultK
		c.maxTopK = maxK
	})
}

// WithDateFields sets the metadata fields read for chronological order,
// in priority order. Default: "datestamp", "date".
func WithDateFields(fields ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dateFields = fields
	})
}

// WithTimeouts bounds each embedding call and each index query.
// Zero leaves the bound to the caller's context.
func WithTimeouts(embed, index time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTimeout = embed
		c.indexTimeout = index
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
