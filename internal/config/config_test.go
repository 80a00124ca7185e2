package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "memcached" }, "database.driver"},
		{"missing addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "faiss" }, "index.backend"},
		{"valkey without index name", func(c *Config) { c.Index.Name = "" }, "index.name"},
		{"redis without index name", func(c *Config) {
			c.Index.Backend = BackendRedis
			c.Index.Name = ""
		}, "index.name"},
		{"milvus without address", func(c *Config) { c.Index.Backend = BackendMilvus }, "index.milvus.address"},
		{"bolt without path", func(c *Config) { c.Index.Backend = BackendBolt }, "index.bolt.path"},
		{"default above max", func(c *Config) { c.Index.DefaultTopK = 200 }, "default_top_k"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }, "tracing.endpoint"},
		{"cache without addrs", func(c *Config) {
			c.Index.Backend = BackendBolt
			c.Index.Bolt.Path = "/tmp/x.db"
			c.Database.Addrs = nil
			c.Embedding.Cache.Enabled = true
		}, "embedding.cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_BoltWithoutDatabase(t *testing.T) {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Index: IndexConfig{Backend: BackendBolt, Bolt: BoltConfig{Path: "/tmp/idx.db"}},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != BackendValkey {
		t.Errorf("expected driver valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Index.Backend != BackendValkey {
		t.Errorf("expected backend to follow driver, got %q", cfg.Index.Backend)
	}
	if cfg.Index.Dimensions != 384 {
		t.Errorf("expected Dimensions=384, got %d", cfg.Index.Dimensions)
	}
	if cfg.Index.DefaultTopK != 10 || cfg.Index.MaxTopK != 100 {
		t.Errorf("expected topK 10/100, got %d/%d", cfg.Index.DefaultTopK, cfg.Index.MaxTopK)
	}
	if cfg.Embedding.Provider != ProviderHuggingFace {
		t.Errorf("expected huggingface provider, got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model != "sentence-transformers/all-MiniLM-L6-v2" {
		t.Errorf("unexpected model %q", cfg.Embedding.Model)
	}
	if len(cfg.Timeline.DateFields) != 2 || cfg.Timeline.DateFields[0] != "datestamp" {
		t.Errorf("unexpected date fields %v", cfg.Timeline.DateFields)
	}
	if cfg.IndexTimeout() != 5*time.Second {
		t.Errorf("expected index timeout 5s, got %v", cfg.IndexTimeout())
	}
	if cfg.EmbeddingTimeout() != 10*time.Second {
		t.Errorf("expected embedding timeout 10s, got %v", cfg.EmbeddingTimeout())
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{Driver: BackendRedis},
		Index:     IndexConfig{Backend: BackendMilvus, DefaultTopK: 5, MaxTopK: 50, TimeoutMs: 250},
		Embedding: EmbeddingConfig{Provider: ProviderOpenAI, Model: "text-embedding-3-small"},
		Timeline:  TimelineConfig{DateFields: []string{"published"}},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Index.Backend != BackendMilvus {
		t.Errorf("expected backend milvus, got %q", cfg.Index.Backend)
	}
	if cfg.Index.DefaultTopK != 5 || cfg.Index.MaxTopK != 50 {
		t.Errorf("expected topK 5/50, got %d/%d", cfg.Index.DefaultTopK, cfg.Index.MaxTopK)
	}
	if cfg.IndexTimeout() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.IndexTimeout())
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("unexpected model %q", cfg.Embedding.Model)
	}
	if cfg.Timeline.DateFields[0] != "published" {
		t.Errorf("unexpected date fields %v", cfg.Timeline.DateFields)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("VECLINE_TEST_HF_KEY", "hf_secret")

	data := []byte(`
http:
  port: ${VECLINE_TEST_PORT:-9090}
database:
  addrs: ["localhost:6379"]
embedding:
  api_key: ${VECLINE_TEST_HF_KEY}
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "hf_secret" {
		t.Errorf("expected api key from env, got %q", cfg.Embedding.APIKey)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Parse([]byte("http:\n  port: 0\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := "http:\n  port: 8080\nindex:\n  backend: bolt\n  bolt:\n    path: ./data/index.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Index.Backend != BackendBolt || cfg.Index.Bolt.Path != "./data/index.db" {
		t.Errorf("unexpected index config %+v", cfg.Index)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if GetEnv() != "local" {
		t.Errorf("expected local, got %q", GetEnv())
	}
	t.Setenv("ENV", "prod")
	if GetEnv() != "prod" {
		t.Errorf("expected prod, got %q", GetEnv())
	}
}
