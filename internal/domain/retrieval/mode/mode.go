package mode

import (
	"fmt"
	"strings"
)

// Mode is the presentation order applied to retrieved matches.
type Mode string

// Ordering modes.
const (
	// Relevance keeps the index-native order (descending similarity).
	Relevance Mode = "relevance"
	// Chronological orders matches newest first by their metadata date.
	Chronological Mode = "chronological"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Relevance || m == Chronological
}

// Parse converts a client-supplied mode. Empty input means Relevance.
// "timeline" is accepted as an alias for Chronological.
func Parse(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return Relevance, nil
	case "timeline":
		return Chronological, nil
	}
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid ordering mode: %q", s)
	}
	return m, nil
}
