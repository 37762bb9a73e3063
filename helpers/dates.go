package helpers

import (
	"strings"
	"time"
)

// dateLayouts are the entry/expiry date formats clients have been seen to send
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// ParseDate parses a loosely formatted date string. The second result is false
// when no known layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewestFirst orders two loose date strings for a descending sort.
// Unparseable dates sort after every parseable one.
func NewestFirst(a, b string) bool {
	ta, okA := ParseDate(a)
	tb, okB := ParseDate(b)
	switch {
	case okA && okB:
		return ta.After(tb)
	case okA:
		return true
	default:
		return false
	}
}

// Timestamp formats t the way history entries store dates
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
