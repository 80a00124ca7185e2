package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"provider", fmt.Errorf("embed: %w", ErrEmbeddingProviderUnavailable), KindEmbeddingProviderUnavailable},
		{"shape", NewDimensionMismatch(10, 384), KindInvalidEmbeddingShape},
		{"index down", fmt.Errorf("%w: %w", ErrIndexUnavailable, errors.New("dial tcp")), KindIndexUnavailable},
		{"rejected", fmt.Errorf("query: %w", ErrIndexQueryRejected), KindIndexQueryRejected},
		{"request", fmt.Errorf("%w: bad mode", ErrInvalidRequest), KindInvalidRequest},
		{"unclassified", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKind_Sentinel(t *testing.T) {
	if KindIndexUnavailable.Sentinel() != ErrIndexUnavailable {
		t.Error("expected ErrIndexUnavailable sentinel")
	}
	if KindInternal.Sentinel() != nil {
		t.Error("internal kind has no sentinel")
	}
}

func TestShapeError(t *testing.T) {
	err := NewDimensionMismatch(10, 384)
	if !errors.Is(err, ErrInvalidEmbeddingShape) {
		t.Fatal("expected ErrInvalidEmbeddingShape in chain")
	}
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatal("expected *ShapeError")
	}
	if se.Got != 10 || se.Want != 384 {
		t.Errorf("got %d/%d", se.Got, se.Want)
	}
	want := "invalid embedding shape: got 10 dimensions, expected 384"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	malformed := NewMalformedEmbedding("nested array")
	if malformed.Error() != "invalid embedding shape: nested array" {
		t.Errorf("Error() = %q", malformed.Error())
	}
}
