package order

import (
	"slices"
	"time"

	"github.com/kailas-cloud/vecline/internal/domain/retrieval/match"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/mode"
)

// DefaultDateFields are the metadata keys consulted for a match date, in precedence order.
var DefaultDateFields = []string{"datestamp", "date"}

// Orderer applies a presentation mode to a match sequence.
type Orderer struct {
	fields []string
}

// New creates an orderer reading dates from the given metadata fields.
// No fields means DefaultDateFields.
func New(fields ...string) *Orderer {
	if len(fields) == 0 {
		fields = DefaultDateFields
	}
	return &Orderer{fields: slices.Clone(fields)}
}

// DateFields returns the configured metadata keys.
func (o *Orderer) DateFields() []string { return slices.Clone(o.fields) }

// Order returns a new slice arranged for the mode. The input is never modified.
// Relevance keeps index order. Chronological sorts newest first, stable among
// equal dates, with undated matches after all dated ones in their input order.
func (o *Orderer) Order(matches []match.Match, m mode.Mode) []match.Match {
	out := slices.Clone(matches)
	if m != mode.Chronological || len(out) < 2 {
		return out
	}

	type keyed struct {
		m     match.Match
		ts    time.Time
		dated bool
	}
	items := make([]keyed, len(out))
	for i := range out {
		ts, ok := out[i].Timestamp(o.fields...)
		items[i] = keyed{m: out[i], ts: ts, dated: ok}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.dated && !b.dated:
			return -1
		case !a.dated && b.dated:
			return 1
		case !a.dated:
			return 0
		}
		return b.ts.Compare(a.ts)
	})

	for i := range items {
		out[i] = items[i].m
	}
	return out
}
