package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/match"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/mode"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/request"
	"github.com/kailas-cloud/vecline/internal/logger"
	healthuc "github.com/kailas-cloud/vecline/internal/usecase/health"
	"github.com/kailas-cloud/vecline/internal/version"
)

const maxBodyBytes = 64 << 10

// Retriever runs the retrieval engine (ISP).
type Retriever interface {
	Retrieve(ctx context.Context, req *request.Request) (match.Result, error)
}

// Orderer presents retrieved matches in the requested mode (ISP).
type Orderer interface {
	Order(matches []match.Match, m mode.Mode) []match.Match
}

// HealthChecker reports component health (ISP).
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the retrieval API.
type Server struct {
	retriever     Retriever
	orderer       Orderer
	health        HealthChecker
	limits        request.Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. health may be nil.
func NewServer(
	retriever Retriever,
	orderer Orderer,
	health HealthChecker,
	limits request.Limits,
	logger *zap.Logger,
) *Server {
	s := &Server{
		retriever: retriever,
		orderer:   orderer,
		health:    health,
		limits:    limits,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorResponseCodeInvalidRequest),
		sentinelHandler(domain.ErrInvalidEmbeddingShape,
			http.StatusBadGateway, ErrorResponseCodeInvalidEmbeddingShape),
		sentinelHandler(domain.ErrEmbeddingProviderUnavailable,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderUnavailable),
		sentinelHandler(domain.ErrIndexQueryRejected, http.StatusBadGateway, ErrorResponseCodeIndexQueryRejected),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeIndexUnavailable),
	}
	return s
}

// RetrieveByQuery handles GET /api/v1/retrieve and the GET /api/v1/fetchEmbeddings alias.
func (s *Server) RetrieveByQuery(w http.ResponseWriter, r *http.Request) {
	var params RetrieveParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "query", q, &params.Query); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid query parameter")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "topK", q, &params.TopK); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid topK parameter")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "mode", q, &params.Mode); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "invalid mode parameter")
		return
	}

	s.retrieve(w, r, deref(params.Query), request.TopKFromString(deref(params.TopK)), deref(params.Mode))
}

// RetrieveByBody handles POST /api/v1/retrieve.
func (s *Server) RetrieveByBody(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorResponseCodeBadRequest, "request body too large")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	s.retrieve(w, r, req.Query, topKFromJSON(req.TopK), req.Mode)
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request, query string, topK int, rawMode string) {
	m, err := mode.Parse(rawMode)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeInvalidRequest, err.Error())
		return
	}
	req, err := request.New(query, topK, m, s.limits)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.retriever.Retrieve(ctx, &req)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	ordered := s.orderer.Order(res.Matches, req.Mode())
	setEmbeddingHeaders(w, usage)
	if err := writeJSON(w, http.StatusOK, RetrieveResponse{
		Items:   matchesToItems(ordered),
		Mode:    string(req.Mode()),
		Total:   len(ordered),
		Dropped: len(res.Anomalies),
	}); err != nil {
		logger.FromContext(ctx).Error("Failed to encode retrieve response",
			zap.Int("matches", len(ordered)),
			zap.Error(err),
		)
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		_ = writeJSON(w, http.StatusOK, HealthResponse{Status: string(healthuc.Healthy), Version: version.Version})
		return
	}
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	if report.Status != healthuc.Healthy {
		s.logger.Warn("health check not ok",
			zap.String("status", string(report.Status)),
			zap.Any("checks", checks),
		)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	if err := writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	}); err != nil {
		s.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage == nil {
		return
	}
	if usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
	if usage.DefaultVector {
		w.Header().Set("X-Default-Vector", "true")
	}
}

// internalErrorBody is the fallback when a response cannot be encoded.
var internalErrorBody = []byte(`{"code":"internal_error","message":"internal error"}` + "\n")

// writeJSON encodes v before writing the status line, so an encoding failure
// is answered with 500 internal_error instead of a 200 with a broken body.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(internalErrorBody)
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
	return nil
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	_ = writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrInvalidEmbeddingShape,
		domain.ErrEmbeddingProviderUnavailable,
		domain.ErrIndexQueryRejected,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx).With(zap.String("kind", string(domain.KindOf(err))))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func matchesToItems(ms []match.Match) []MatchItem {
	items := make([]MatchItem, len(ms))
	for i := range ms {
		md := ms[i].Metadata()
		if md == nil {
			md = map[string]any{}
		}
		items[i] = MatchItem{ID: ms[i].ID(), Score: ms[i].Score(), Metadata: md}
	}
	return items
}

// topKFromJSON accepts a number, a numeric string, or nothing.
func topKFromJSON(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return request.TopKFromString(s)
	}
	return request.TopKFromString(string(raw))
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
