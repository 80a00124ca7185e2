package vecline

// Mode selects the order of returned matches.
type Mode string

const (
	// ModeRelevance keeps the index order, most similar first.
	ModeRelevance Mode = "relevance"
	// ModeChronological orders matches newest first; undated matches go last.
	ModeChronological Mode = "chronological"
)

// RetrieveOptions tunes a single Retrieve call. A nil value means defaults.
type RetrieveOptions struct {
	TopK int  // <= 0 selects the client default; values above the maximum are clamped
	Mode Mode // empty selects ModeRelevance
}

// Match is one retrieved item.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Anomaly describes an index entry dropped for a missing id or score.
type Anomaly struct {
	Position int
	ID       string
	Reason   string
}

// Result is the outcome of a successful Retrieve.
type Result struct {
	Matches       []Match
	Dropped       []Anomaly
	Mode          Mode
	TopK          int
	DefaultVector bool // blank query, the zero vector was used
	Tokens        int  // embedding tokens consumed
}
