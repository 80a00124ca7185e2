package match

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order for string date fields.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// Timestamp derives the match timestamp from the first field in fields
// that holds a parseable value. Fields are checked in order.
func (m *Match) Timestamp(fields ...string) (time.Time, bool) {
	for _, f := range fields {
		v, ok := m.metadata[f]
		if !ok {
			continue
		}
		if ts, ok := ParseTimestamp(v); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp converts a metadata value into a UTC time.
// Strings are parsed as ISO-8601 dates or date-times; numbers are unix seconds.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		return parseTimestampString(t)
	case time.Time:
		return t.UTC(), !t.IsZero()
	case float64:
		return unixSeconds(t), true
	case float32:
		return unixSeconds(float64(t)), true
	case int:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return unixSeconds(f), true
	default:
		return time.Time{}, false
	}
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	// Numeric strings come from hash-backed indexes that store everything as text.
	if f, err := strconv.ParseFloat(s, 64); err == nil && len(s) > 4 {
		return unixSeconds(f), true
	}
	return time.Time{}, false
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
