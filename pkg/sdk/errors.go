package vecline

import "github.com/kailas-cloud/vecline/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmbeddingProviderUnavailable = domain.ErrEmbeddingProviderUnavailable
	ErrInvalidEmbeddingShape        = domain.ErrInvalidEmbeddingShape
	ErrIndexUnavailable             = domain.ErrIndexUnavailable
	ErrIndexQueryRejected           = domain.ErrIndexQueryRejected
	ErrInvalidRequest               = domain.ErrInvalidRequest
)

// KindOf returns the machine-readable failure kind of err,
// e.g. "index_unavailable", or "internal_error" when err carries none.
func KindOf(err error) string {
	return string(domain.KindOf(err))
}
