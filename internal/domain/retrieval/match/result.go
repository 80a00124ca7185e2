package match

// Anomaly records a raw index entry that was dropped instead of coerced.
type Anomaly struct {
	Position int
	ID       string
	Reason   string
}

// Anomaly reasons.
const (
	ReasonMissingID    = "missing_id"
	ReasonMissingScore = "missing_score"
)

// Result is the ordered match sequence of one retrieval, in index-native order.
type Result struct {
	Matches   []Match
	Anomalies []Anomaly
}

// Len returns the number of matches.
func (r *Result) Len() int { return len(r.Matches) }
