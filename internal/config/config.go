package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendValkey = "valkey"
	BackendRedis  = "redis"
	BackendMilvus = "milvus"
	BackendBolt   = "bolt"
)

// Embedding providers.
const (
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"
)

// Config holds the vecline configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Timeline  TimelineConfig  `yaml:"timeline"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
	ServiceName string  `yaml:"service_name"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Valkey/Redis connection settings.
// Used by the valkey/redis index backends and the embedding cache.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig selects the vector index and bounds queries against it.
type IndexConfig struct {
	Backend      string       `yaml:"backend"` // valkey, redis, milvus, bolt
	Name         string       `yaml:"name"`
	KeyPrefix    string       `yaml:"key_prefix"`
	VectorField  string       `yaml:"vector_field"`
	ReturnFields []string     `yaml:"return_fields"`
	Dimensions   int          `yaml:"dimensions"`
	DefaultTopK  int          `yaml:"default_top_k"`
	MaxTopK      int          `yaml:"max_top_k"`
	TimeoutMs    int          `yaml:"timeout_ms"`
	Milvus       MilvusConfig `yaml:"milvus"`
	Bolt         BoltConfig   `yaml:"bolt"`
}

// MilvusConfig holds Milvus connection settings. The collection is index.name.
type MilvusConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Ef       int    `yaml:"ef"`
}

// BoltConfig locates a local bbolt index file. The bucket is index.name.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig holds the query embedding provider settings.
type EmbeddingConfig struct {
	Provider   string      `yaml:"provider"` // openai, huggingface
	APIKey     string      `yaml:"api_key"`
	BaseURL    string      `yaml:"base_url"`
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"` // sent to OpenAI-compatible APIs that support truncation
	TimeoutMs  int         `yaml:"timeout_ms"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig enables the Valkey/Redis query embedding cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// TimelineConfig lists metadata fields probed for chronological ordering, in precedence order.
type TimelineConfig struct {
	DateFields []string `yaml:"date_fields"`
}

// IndexTimeout returns the per-call index deadline.
func (c *Config) IndexTimeout() time.Duration {
	return time.Duration(c.Index.TimeoutMs) * time.Millisecond
}

// EmbeddingTimeout returns the per-call provider deadline.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutMs) * time.Millisecond
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = BackendValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Backend == "" {
		c.Index.Backend = c.Database.Driver
	}
	if c.Index.Name == "" {
		c.Index.Name = "vecline"
	}
	if c.Index.VectorField == "" {
		c.Index.VectorField = "vector"
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = 384
	}
	if c.Index.DefaultTopK <= 0 {
		c.Index.DefaultTopK = 10
	}
	if c.Index.MaxTopK <= 0 {
		c.Index.MaxTopK = 100
	}
	if c.Index.TimeoutMs <= 0 {
		c.Index.TimeoutMs = 5000
	}
	if c.Index.Milvus.Ef <= 0 {
		c.Index.Milvus.Ef = 128
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderHuggingFace
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 10000
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = 86400
	}
	if len(c.Timeline.DateFields) == 0 {
		c.Timeline.DateFields = []string{"datestamp", "date"}
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "vecline"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case BackendValkey, BackendRedis:
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	switch c.Index.Backend {
	case BackendValkey, BackendRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for index.backend %q", c.Index.Backend)
		}
		if c.Index.Name == "" {
			return fmt.Errorf("index.name is required for index.backend %q", c.Index.Backend)
		}
	case BackendMilvus:
		if c.Index.Milvus.Address == "" {
			return fmt.Errorf("index.milvus.address is required")
		}
	case BackendBolt:
		if c.Index.Bolt.Path == "" {
			return fmt.Errorf("index.bolt.path is required")
		}
	default:
		return fmt.Errorf("index.backend must be one of valkey, redis, milvus, bolt, got %q", c.Index.Backend)
	}
	if c.Index.DefaultTopK > c.Index.MaxTopK {
		return fmt.Errorf("index.default_top_k (%d) exceeds index.max_top_k (%d)",
			c.Index.DefaultTopK, c.Index.MaxTopK)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderHuggingFace:
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"huggingface\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Cache.Enabled && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("embedding.cache requires database.addrs")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
