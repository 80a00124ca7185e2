package request

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/mode"
)

// MaxQueryLength is the maximum allowed query length in bytes.
const MaxQueryLength = 4096

// Limits bound the number of matches a single request may ask for.
type Limits struct {
	DefaultTopK int
	MaxTopK     int
}

// DefaultLimits mirrors domain.DefaultVectorConfig.
func DefaultLimits() Limits {
	cfg := domain.DefaultVectorConfig()
	return Limits{DefaultTopK: cfg.DefaultTopK, MaxTopK: cfg.MaxTopK}
}

// Request is a validated retrieval query.
type Request struct {
	query string
	topK  int
	order mode.Mode
}

// New validates and normalizes retrieval parameters.
// topK <= 0 falls back to the default; values above the maximum are clamped.
// An empty query is valid and selects the default vector.
func New(query string, topK int, m mode.Mode, limits Limits) (Request, error) {
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if m == "" {
		m = mode.Relevance
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid ordering mode: %q", domain.ErrInvalidRequest, m)
	}
	return Request{query: query, topK: limits.Normalize(topK), order: m}, nil
}

// Normalize applies the default and maximum to a requested topK.
func (l Limits) Normalize(topK int) int {
	def, maxK := l.DefaultTopK, l.MaxTopK
	if def <= 0 {
		def = DefaultLimits().DefaultTopK
	}
	if maxK <= 0 {
		maxK = DefaultLimits().MaxTopK
	}
	if def > maxK {
		def = maxK
	}
	if topK <= 0 {
		return def
	}
	if topK > maxK {
		return maxK
	}
	return topK
}

// TopKFromString parses a client-supplied topK. Non-numeric input yields 0,
// which Normalize maps to the default.
func TopKFromString(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || f <= 0 {
			return 0
		}
		if f > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(f)
	}
	return n
}

// Query returns the trimmed query text. Empty means "no query".
func (r *Request) Query() string { return r.query }

// IsBlank reports whether the default vector should be used.
func (r *Request) IsBlank() bool { return r.query == "" }

// TopK returns the normalized number of matches to retrieve.
func (r *Request) TopK() int { return r.topK }

// Mode returns the requested ordering.
func (r *Request) Mode() mode.Mode { return r.order }
