// Package huggingface calls the Hugging Face inference feature-extraction pipeline.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/metrics"
)

// DefaultBaseURL is the hosted inference endpoint root.
const DefaultBaseURL = "https://api-inference.huggingface.co/pipeline/feature-extraction"

const maxErrorBody = 512

// Config holds the provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Embedder posts a single input and expects one flat pooled vector back.
type Embedder struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

type embedOptions struct {
	WaitForModel bool   `json:"wait_for_model"`
	Pooling      string `json:"pooling,omitempty"`
	Normalize    bool   `json:"normalize"`
}

type embedRequest struct {
	Inputs  string       `json:"inputs"`
	Options embedOptions `json:"options"`
}

// NewEmbedder creates a feature-extraction provider for cfg.Model.
func NewEmbedder(cfg *Config) *Embedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		apiKey:   cfg.APIKey,
		endpoint: base + "/" + strings.TrimLeft(cfg.Model, "/"),
		model:    cfg.Model,
		client:   client,
		logger:   logger,
	}
}

// Embed implements domain.Embedder. Deadlines come from ctx; no retries.
func (e *Embedder) Embed(
	ctx context.Context, text string, opts domain.EmbedOptions,
) (domain.EmbeddingResult, error) {
	body, err := json.Marshal(embedRequest{
		Inputs: text,
		Options: embedOptions{
			WaitForModel: true,
			Pooling:      string(opts.Pooling),
			Normalize:    opts.Normalize,
		},
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal embed request: %w", err)
	}

	start := time.Now()
	raw, err := e.post(ctx, body)
	duration := time.Since(start)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("huggingface", e.model, "error").Inc()
		return domain.EmbeddingResult{}, err
	}

	vec, err := decodeVector(raw)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("huggingface", e.model, "error").Inc()
		return domain.EmbeddingResult{}, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("huggingface", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("huggingface", e.model).Observe(duration.Seconds())

	return domain.EmbeddingResult{Embedding: vec}, nil
}

// HealthCheck embeds a short probe text.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "ping", domain.QueryEmbedOptions())
	return err
}

func (e *Embedder) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.logger.Debug("Feature extraction returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return nil, fmt.Errorf("%w: status %d: %s",
			domain.ErrEmbeddingProviderUnavailable, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrEmbeddingProviderUnavailable, err)
	}
	return raw, nil
}

// decodeVector accepts only a flat array of numbers.
func decodeVector(raw []byte) ([]float32, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, domain.NewMalformedEmbedding("response is not a JSON array")
	}
	vec := make([]float32, len(items))
	for i, item := range items {
		var f float64
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) || json.Unmarshal(item, &f) != nil {
			return nil, domain.NewMalformedEmbedding(fmt.Sprintf("element %d is not a number", i))
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
