package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingProviderUnavailable signals a transport, timeout or non-success response from the embedding provider.
	ErrEmbeddingProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrInvalidEmbeddingShape signals a provider output that is not a flat numeric vector of the configured dimension.
	ErrInvalidEmbeddingShape = errors.New("invalid embedding shape")
	// ErrIndexUnavailable signals a transport or timeout failure against the vector index.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrIndexQueryRejected signals a query the index refused as malformed (e.g. dimension mismatch).
	ErrIndexQueryRejected = errors.New("vector index rejected query")
	// ErrInvalidRequest signals request parameters that could not be normalized.
	ErrInvalidRequest = errors.New("invalid request")
)

// Kind is the machine-readable classification of a retrieval failure.
type Kind string

// Failure kinds exposed to callers.
const (
	KindEmbeddingProviderUnavailable Kind = "embedding_provider_unavailable"
	KindInvalidEmbeddingShape        Kind = "invalid_embedding_shape"
	KindIndexUnavailable             Kind = "index_unavailable"
	KindIndexQueryRejected           Kind = "index_query_rejected"
	KindInvalidRequest               Kind = "invalid_request"
	KindInternal                     Kind = "internal_error"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrInvalidEmbeddingShape, KindInvalidEmbeddingShape},
	{ErrEmbeddingProviderUnavailable, KindEmbeddingProviderUnavailable},
	{ErrIndexQueryRejected, KindIndexQueryRejected},
	{ErrIndexUnavailable, KindIndexUnavailable},
}

// KindOf returns the classification carried by err, or KindInternal when none is attached.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// Sentinel returns the sentinel error for a kind, nil for KindInternal or unknown kinds.
func (k Kind) Sentinel() error {
	for _, e := range kinds {
		if e.kind == k {
			return e.sentinel
		}
	}
	return nil
}

// ShapeError wraps ErrInvalidEmbeddingShape with what was received.
type ShapeError struct {
	Got    int
	Want   int
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", ErrInvalidEmbeddingShape.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: got %d dimensions, expected %d", ErrInvalidEmbeddingShape.Error(), e.Got, e.Want)
}

func (e *ShapeError) Unwrap() error { return ErrInvalidEmbeddingShape }

// NewDimensionMismatch creates a shape error for a vector of the wrong length.
func NewDimensionMismatch(got, want int) error {
	return &ShapeError{Got: got, Want: want}
}

// NewMalformedEmbedding creates a shape error for output that is not a flat numeric sequence.
func NewMalformedEmbedding(reason string) error {
	return &ShapeError{Reason: reason}
}
