package db

// DefaultVectorField is the vector attribute name used when none is configured.
const DefaultVectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Vector       []float32
	K            int
	ReturnFields []string
	// ScoreOnly returns keys and distances without document fields.
	ScoreOnly bool
}

// ScoreField returns the attribute FT.SEARCH uses for the KNN distance.
func (q *KNNQuery) ScoreField() string {
	f := q.VectorField
	if f == "" {
		f = DefaultVectorField
	}
	return "__" + f + "_score"
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// HasScore is false when the reply carried no parseable distance.
type SearchEntry struct {
	Key      string
	Score    float64
	HasScore bool
	Fields   map[string]string
}
