package match

import "maps"

// Match is a single retrieved item: identifier, similarity score and metadata.
type Match struct {
	id       string
	score    float64
	metadata map[string]any
}

// New creates a match. The metadata map is copied.
func New(id string, score float64, metadata map[string]any) Match {
	var md map[string]any
	if metadata != nil {
		md = maps.Clone(metadata)
	}
	return Match{id: id, score: score, metadata: md}
}

// ID returns the document identifier.
func (m *Match) ID() string { return m.id }

// Score returns the similarity score (higher is more similar).
func (m *Match) Score() float64 { return m.score }

// Metadata returns the metadata map. Callers must not modify it.
func (m *Match) Metadata() map[string]any { return m.metadata }

// Field returns a metadata value.
func (m *Match) Field(key string) (any, bool) {
	v, ok := m.metadata[key]
	return v, ok
}

// StringField returns a metadata value if it is a non-empty string.
func (m *Match) StringField(key string) (string, bool) {
	s, ok := m.metadata[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
